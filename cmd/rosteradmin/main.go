// cmd/rosteradmin/main.go
//
// Entry point for the roster admin terminal panel.
//
// `rosteradmin` opens the panel against the configured backend.
// `rosteradmin sandbox` serves a local backend with the same admin API.

package main

func main() {
	Execute()
}
