// Package lojack is a client for the Spireon LoJack vehicle and asset
// tracking REST API.
//
// The vendor splits authentication (identity service) from asset
// management (services API). A Client owns one transport per base URL and
// a SessionManager that logs in lazily, refreshes the bearer token before
// it expires, and can export its session for resumption across process
// restarts:
//
//	cfg, _ := lojack.LoadConfig("")
//	client := lojack.NewClient(cfg)
//	assets, err := client.ListDevices(ctx)
//
// The vendor returns the same semantic fields under many key spellings,
// shapes, and units; the *FromAPI constructors normalize them into
// canonical records and never fail on malformed input, so one bad record
// cannot abort a batch.
package lojack
