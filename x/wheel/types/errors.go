package types

import (
	errorsmod "cosmossdk.io/errors"
)

// wheel module sentinel errors
var (
	ErrInvalidSegments      = errorsmod.Register(ModuleName, 2, "wheel needs at least one segment")
	ErrSpinNotFound         = errorsmod.Register(ModuleName, 3, "spin not found")
	ErrUnknownInstruction   = errorsmod.Register(ModuleName, 4, "unknown callback instruction")
	ErrSpinAlreadySettled   = errorsmod.Register(ModuleName, 5, "spin already settled")
	ErrInvalidEncryptionKey = errorsmod.Register(ModuleName, 6, "invalid encryption public key")
)
