package cmd

import (
	"gorm.io/gorm"

	"github.com/diesing/rt-share/internal/config"
	"github.com/diesing/rt-share/internal/db"
	"github.com/diesing/rt-share/internal/store"
)

// openStore opens the node's database. The caller closes the returned handle.
func openStore(cfg config.Config) (*gorm.DB, *store.BlobStore, error) {
	gdb, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, nil, err
	}
	return gdb, store.NewBlobStore(gdb, cfg.Store.Capacity), nil
}
