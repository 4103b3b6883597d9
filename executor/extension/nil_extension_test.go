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

package extension

import (
	"testing"

	"github.com/Fantom-foundation/Specula/executor"
)

func TestNilExtension_IsExtension(t *testing.T) {
	var _ executor.Extension = NilExtension{}
}

func TestNilExtension_IgnoresAllEvents(t *testing.T) {
	ext := NilExtension{}
	ctx := &executor.Context{}
	if err := ext.PreRun(executor.State{}, ctx); err != nil {
		t.Errorf("unexpected error in PreRun: %v", err)
	}
	if err := ext.PreBlock(executor.State{Block: 1}, ctx); err != nil {
		t.Errorf("unexpected error in PreBlock: %v", err)
	}
	if err := ext.PostBlock(executor.State{Block: 1}, ctx); err != nil {
		t.Errorf("unexpected error in PostBlock: %v", err)
	}
	if err := ext.PostRun(executor.State{Block: 2}, ctx, nil); err != nil {
		t.Errorf("unexpected error in PostRun: %v", err)
	}
}
