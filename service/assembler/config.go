package assembler

import (
	"github.com/brojonat/mintgen/service/protocol"
	"github.com/gagliardetto/solana-go"
)

func single(ix solana.Instruction, err error) (Part, error) {
	if err != nil {
		return Part{}, err
	}
	return Part{Instructions: []solana.Instruction{ix}}, nil
}

// BuildInitMintConfig creates the config named args.Name.
func (a *Assembler) BuildInitMintConfig(authority, payer solana.PublicKey, args protocol.InitMintConfigArgs) (Part, error) {
	return single(a.program.InitMintConfig(authority, payer, args))
}

// BuildUpdateMintConfig replaces the mutable fields of a config.
func (a *Assembler) BuildUpdateMintConfig(configID, authority, payer solana.PublicKey, args protocol.UpdateMintConfigArgs) (Part, error) {
	return single(a.program.UpdateMintConfig(configID, authority, payer, args))
}

// BuildSetMintConfigMetadata replaces the metadata string of a config.
func (a *Assembler) BuildSetMintConfigMetadata(configID, authority, payer solana.PublicKey, metadata string) (Part, error) {
	return single(a.program.SetMintConfigMetadata(configID, authority, payer, metadata))
}

// BuildCloseMintConfig closes a config.
func (a *Assembler) BuildCloseMintConfig(configID, authority solana.PublicKey) (Part, error) {
	return single(a.program.CloseMintConfig(configID, authority))
}
