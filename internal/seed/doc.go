// Package seed populates a fresh database with a demo account and a
// household of devices so the stack is usable out of the box.
// Seeding is idempotent: devices are matched by topic and never
// recreated or reset.
package seed
