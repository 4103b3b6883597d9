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
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/mock/gomock"
)

// ----------------------------------------------------------------------------
//                                   Matcher
// ----------------------------------------------------------------------------

// AtBlock matches executor.State instances with the given block.
func AtBlock(block uint64) gomock.Matcher {
	return atBlock{block}
}

// AtIndex matches TransactionInfo instances with the given position in the block.
func AtIndex(index int) gomock.Matcher {
	return atIndex{index}
}

// WithRoot matches executor.Context instances with the given state root.
func WithRoot(root common.Hash) gomock.Matcher {
	return withRoot{root}
}

// InConflict matches executor.State instances whose block result reports
// the given conflict status.
func InConflict(conflict bool) gomock.Matcher {
	return inConflict{conflict}
}

// WithError matches errors wrapping the given error.
func WithError(err error) gomock.Matcher {
	return withError{err}
}

// Lt matches every value less than the given limit.
func Lt(limit float64) gomock.Matcher {
	return lt{limit}
}

// Gt matches every value greater than the given limit.
func Gt(limit float64) gomock.Matcher {
	return gt{limit}
}

// MatchRate matches float64 rates satisfying the given constraint.
func MatchRate(constraint gomock.Matcher, name string) gomock.Matcher {
	return matchRate{constraint, name}
}

// ----------------------------------------------------------------------------

type atBlock struct {
	expectedBlock uint64
}

func (m atBlock) Matches(value any) bool {
	state, ok := value.(State)
	return ok && state.Block == m.expectedBlock
}

func (m atBlock) String() string {
	return fmt.Sprintf("at block %d", m.expectedBlock)
}

type atIndex struct {
	index int
}

func (m atIndex) Matches(value any) bool {
	tx, ok := value.(TransactionInfo)
	return ok && tx.Index == m.index
}

func (m atIndex) String() string {
	return fmt.Sprintf("transaction %d", m.index)
}

type withRoot struct {
	root common.Hash
}

func (m withRoot) Matches(value any) bool {
	if ctx, ok := value.(Context); ok {
		return ctx.Root == m.root
	}
	if ctx, ok := value.(*Context); ok {
		return ctx != nil && ctx.Root == m.root
	}
	return false
}

func (m withRoot) String() string {
	return fmt.Sprintf("with root %x", m.root)
}

type inConflict struct {
	conflict bool
}

func (m inConflict) Matches(value any) bool {
	state, ok := value.(State)
	return ok && state.Result != nil && state.Result.Conflict == m.conflict
}

func (m inConflict) String() string {
	if m.conflict {
		return "with conflict"
	}
	return "without conflict"
}

type withError struct {
	err error
}

func (m withError) Matches(value any) bool {
	err, ok := value.(error)
	return ok && errors.Is(err, m.err)
}

func (m withError) String() string {
	return fmt.Sprintf("with error %v", m.err)
}

type lt struct {
	limit float64
}

func (m lt) Matches(value any) bool {
	v, ok := value.(float64)
	return ok && v < m.limit
}

func (m lt) String() string {
	return fmt.Sprintf("less than %v", m.limit)
}

type gt struct {
	limit float64
}

func (m gt) Matches(value any) bool {
	v, ok := value.(float64)
	return ok && v > m.limit
}

func (m gt) String() string {
	return fmt.Sprintf("greater than %v", m.limit)
}

type matchRate struct {
	constraint gomock.Matcher
	name       string
}

func (m matchRate) Matches(value any) bool {
	rate, ok := value.(float64)
	return ok && m.constraint.Matches(rate)
}

func (m matchRate) String() string {
	return fmt.Sprintf("log should have a %v that is %v", m.name, m.constraint)
}
