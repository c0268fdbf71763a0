package app

import (
	"github.com/cosmos/cosmos-sdk/codec"
	"github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/std"
)

// EncodingConfig holds the codecs used outside the module stores. Module
// state is JSON; the proto codec only serves keyring records and their
// public keys.
type EncodingConfig struct {
	InterfaceRegistry types.InterfaceRegistry
	Codec             codec.Codec
	Amino             *codec.LegacyAmino
}

// MakeEncodingConfig registers the standard crypto interfaces and returns
// the proto and amino codecs over them.
func MakeEncodingConfig() EncodingConfig {
	amino := codec.NewLegacyAmino()
	std.RegisterLegacyAminoCodec(amino)

	interfaceRegistry := types.NewInterfaceRegistry()
	std.RegisterInterfaces(interfaceRegistry)

	return EncodingConfig{
		InterfaceRegistry: interfaceRegistry,
		Codec:             codec.NewProtoCodec(interfaceRegistry),
		Amino:             amino,
	}
}
