package staking

import "errors"

var (
	ErrPromiseTooLong          = errors.New("staking: promise month may not exceed 36")
	ErrStashAlreadyBonded      = errors.New("staking: stash already bonded")
	ErrControllerAlreadyPaired = errors.New("staking: controller already paired")
	ErrNotController           = errors.New("staking: not a controller")
	ErrNotStash                = errors.New("staking: not a stash")
	ErrNoMoreChunks            = errors.New("staking: can not schedule more unlock chunks")
	ErrEmptyTargets            = errors.New("staking: targets cannot be empty")
	ErrUnstakeThresholdTooBig  = errors.New("staking: unstake threshold too large")
	ErrDepositAlreadyMature    = errors.New("staking: deposit already expired, use unbond instead")
	ErrBadPayee                = errors.New("staking: unknown reward destination")
	ErrBadCurrency             = errors.New("staking: unknown staking currency")
	ErrOffenceShape            = errors.New("staking: offenders and slash fractions must align")
)
