// Package embedded provides access to data files compiled into the binary.
package embedded

import _ "embed"

// ProvidersData contains the embedded provider catalog YAML data.
//
//go:embed providers.yaml
var ProvidersData []byte
