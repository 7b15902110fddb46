// Package grantsync keeps a PASS repository in step with an institution's
// grants database.
//
// Each run reads one batch of rows from the SOURCE database for a mode and
// an update window and reconciles the Funder, User and Grant resources they
// describe into the STORE. Reconciliation is idempotent: an entity is looked
// up by its local key or locator ids, created when absent and updated only
// when a field actually changed, so running the same batch twice writes
// nothing the second time.
//
// # Modes
//
//	grant   one row per grant and investigator; builds funders, users and grants
//	user    one row per person; refreshes user records
//	funder  one row per sponsor; refreshes funder names and policies
//
// # Architecture
//
//   - pkg/engine: the reconciler, entity builders, merge rules and watermark
//   - pkg/source: SOURCE queries per mode over PostgreSQL or MySQL
//   - pkg/store: the STORE contract and its memory, SQLite, MongoDB and PASS backends
//   - pkg/dump, pkg/watermark: row files for pull/load and the update history
//   - pkg/notify, pkg/metrics, pkg/observability: reports, Prometheus and tracing
//   - internal/pipeline: one run end to end
//   - cmd/grantsync: the CLI
//
// # Quick Start
//
//	grantsync run --config grantsync.yaml --mode grant
//	grantsync run --config grantsync.yaml --mode user --action pull users.json.zst
//	grantsync run --config grantsync.yaml --action load users.json.zst
package grantsync
