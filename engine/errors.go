package engine

import "errors"

var (
	ErrRollbackTargetExpired = errors.New("engine: rollback target outside history")
	ErrRollbackTargetFuture  = errors.New("engine: rollback target is in the future")
	ErrResimulateBackwards   = errors.New("engine: resimulation target is behind current tick")
	ErrReentrant             = errors.New("engine: scheduler re-entered from observer")
	ErrInvalidConfig         = errors.New("engine: invalid config")
)
