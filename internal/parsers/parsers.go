// Package parsers imports all beacon variant packages to trigger their init()
// registration. Import this package for side effects only.
package parsers

import (
	// Import all parser packages to register them with the registry.
	_ "ogn_parser/internal/parsers/aircraft"
	_ "ogn_parser/internal/parsers/receiver"
	_ "ogn_parser/internal/parsers/status"
)
