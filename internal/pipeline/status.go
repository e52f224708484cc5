package pipeline

// Subscribe registers for status events. The channel is buffered; events are dropped for
// subscribers that fall behind. The current status is delivered immediately. Call the
// returned function to unsubscribe; it closes the channel.
func (o *Orchestrator) Subscribe() (<-chan StatusEvent, func()) {
	ch := make(chan StatusEvent, statusBuffer)

	o.subMu.Lock()
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = ch
	ch <- o.lastStatus
	o.subMu.Unlock()

	var once bool
	cancel := func() {
		o.subMu.Lock()
		defer o.subMu.Unlock()
		if once {
			return
		}
		once = true
		delete(o.subscribers, id)
		close(ch)
	}
	return ch, cancel
}

// Status returns the most recently published status.
func (o *Orchestrator) Status() StatusEvent {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	return o.lastStatus
}

func (o *Orchestrator) publish(ev StatusEvent) {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	o.lastStatus = ev
	for id, ch := range o.subscribers {
		select {
		case ch <- ev:
		default:
			o.logger.Debug("Status subscriber is behind, dropping event", "subscriber", id, "status", ev.Status)
		}
	}
}
