package web

import _ "embed"

// BeaconJS is the embeddable telemetry snippet served at /beacon.js.
// Sites include it with a script tag carrying data-site-id.
//
//go:embed beacon.js
var BeaconJS []byte
