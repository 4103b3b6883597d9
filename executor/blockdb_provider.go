// Copyright 2024 Fantom Foundation
// This file is part of Specula, a speculative block executor for Sonic
//
// Specula is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Specula is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Specula. If not, see <http://www.gnu.org/licenses/>.

package executor

import (
	"github.com/Fantom-foundation/Specula/blockdb"
	"github.com/Fantom-foundation/Specula/txcontext"
	"github.com/Fantom-foundation/Specula/utils"
)

// OpenBlockDbProvider opens the block database of the configuration for reading.
func OpenBlockDbProvider(cfg *utils.Config) (BlockProvider, error) {
	db, err := blockdb.Open(cfg.BlockDb, true)
	if err != nil {
		return nil, err
	}
	return NewBlockDbProvider(db), nil
}

// NewBlockDbProvider creates a provider reading from the given database.
// The database is closed together with the provider.
func NewBlockDbProvider(db *blockdb.BlockDB) BlockProvider {
	return &blockDbProvider{db}
}

type blockDbProvider struct {
	db *blockdb.BlockDB
}

func (p *blockDbProvider) Run(from uint64, to uint64, consumer BlockConsumer) error {
	return p.db.Iterate(from, to, func(block *txcontext.Block, reward *txcontext.Reward) error {
		return consumer(block, reward)
	})
}

func (p *blockDbProvider) Close() {
	p.db.Close()
}
