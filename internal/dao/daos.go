package dao

import (
	"log/slog"

	"github.com/pharmaai/pharmadb/internal/db"
)

// DAOs bundles every table's access object over one shared pool.
type DAOs struct {
	Items         *Items
	Inspectors    *Inspectors
	Laboratories  *Laboratories
	Conversations *Conversations
	Messages      *Messages
	Experiments   *Experiments
	Configs       *Configs
}

// New wires all access objects to the pool.
func New(pool *db.Pool, log *slog.Logger) *DAOs {
	return &DAOs{
		Items:         NewItems(pool, log),
		Inspectors:    NewInspectors(pool, log),
		Laboratories:  NewLaboratories(pool, log),
		Conversations: NewConversations(pool, log),
		Messages:      NewMessages(pool, log),
		Experiments:   NewExperiments(pool, log),
		Configs:       NewConfigs(pool, log),
	}
}
