// Package scanner runs subnet discovery scans.
//
// A Coordinator drives one scan at a time through two bounded worker pools:
// liveness probes fan out over every usable address of the range, and each
// reachable address is handed to a fingerprint worker. Progress is published
// through a Status that any number of readers can snapshot while the scan
// runs. The finished scan, whether completed, cancelled or failed, is stored
// as a single record in the registry.
//
// Service wraps the coordinator with the operations exposed to users:
// starting a scan from network text, reading status and stored results,
// export, clearing and cancellation.
package scanner
