// Package wms provides the shared domain vocabulary for the ASRS warehouse
// control system: basket identifier normalization, the fixed-width PLC
// command encoding, and the data types exchanged between the store, the
// mover and the API layer.
//
// The database is the single source of truth for shelf occupancy and the
// job queues; the types here are plain value carriers with no behaviour
// beyond validation and encoding.
package wms
