// Package simulation runs an in-process stand-in for the MPC cluster: a set
// of BLS signers on BN254, an x25519 encryption key and the circuits they
// execute. It drives requests through the same keeper calls a real cluster
// would and lets tests produce tampered outputs.
package simulation

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/TOBY0001/encrypted-wheel/x/mxe/sealing"
	"github.com/TOBY0001/encrypted-wheel/x/mxe/types"
)

// Orchestrator is the subset of the mxe keeper the cluster drives.
type Orchestrator interface {
	GetRequest(ctx context.Context, offset uint64) (types.ComputationRequest, error)
	GetDefinition(ctx context.Context, id uint32) (types.ComputationDefinition, error)
	VerifyCircuitBytes(ctx context.Context, id uint32, fetched []byte) error
	MarkExecuting(ctx context.Context, executor string, offset uint64) error
	SubmitOutput(ctx context.Context, output types.SignedOutput) (types.CallbackEvent, error)
}

// ProgramFunc evaluates a circuit on decoded arguments and returns one
// plaintext slot per output. rng supplies the cluster's private randomness.
type ProgramFunc func(args []types.Argument, rng io.Reader) ([][sealing.BlockSize]byte, error)

// Signer is one simulated cluster node.
type Signer struct {
	ID     string
	secret fr.Element
	Public bn254.G2Affine
}

// Cluster is a simulated MPC cluster for one epoch.
type Cluster struct {
	epoch      uint64
	threshold  uint32
	signers    []Signer
	encryption sealing.KeyPair

	programs map[string]ProgramFunc
	hosted   map[string][]byte
	rng      io.Reader
}

// NewCluster derives n signers and the encryption key deterministically from
// seed, so the same seed always yields the same cluster.
func NewCluster(seed []byte, epoch uint64, n int, threshold uint32) (*Cluster, error) {
	if n <= 0 || threshold == 0 || int(threshold) > n {
		return nil, fmt.Errorf("simulation: threshold %d of %d signers", threshold, n)
	}

	c := &Cluster{
		epoch:     epoch,
		threshold: threshold,
		programs:  make(map[string]ProgramFunc),
		hosted:    make(map[string][]byte),
		rng:       newDigestReader(append([]byte("rng"), seed...)),
	}

	for i := 0; i < n; i++ {
		signer, err := deriveSigner(seed, epoch, i)
		if err != nil {
			return nil, err
		}
		c.signers = append(c.signers, signer)
	}

	kp, err := sealing.GenerateKeyPairFrom(newDigestReader(append([]byte("x25519"), seed...)))
	if err != nil {
		return nil, err
	}
	c.encryption = kp
	return c, nil
}

func deriveSigner(seed []byte, epoch uint64, i int) (Signer, error) {
	h := sha256.New()
	h.Write([]byte("bls-signer"))
	h.Write(seed)
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], epoch)
	binary.BigEndian.PutUint64(buf[8:], uint64(i))
	h.Write(buf[:])

	var s Signer
	s.ID = fmt.Sprintf("node-%d", i)
	s.secret.SetBytes(h.Sum(nil))
	if s.secret.IsZero() {
		return Signer{}, fmt.Errorf("simulation: degenerate key for signer %d", i)
	}

	var sk big.Int
	s.secret.BigInt(&sk)
	s.Public.ScalarMultiplicationBase(&sk)
	return s, nil
}

// Config returns the cluster configuration to publish on chain.
func (c *Cluster) Config() types.ClusterConfig {
	cfg := types.ClusterConfig{
		Epoch:         c.epoch,
		Threshold:     c.threshold,
		EncryptionKey: c.encryption.Public,
	}
	for _, s := range c.signers {
		pk := s.Public.Bytes()
		cfg.Signers = append(cfg.Signers, types.ClusterSigner{ID: s.ID, PubKey: pk[:]})
	}
	return cfg
}

// Signers returns the cluster nodes in index order.
func (c *Cluster) Signers() []Signer {
	return append([]Signer{}, c.signers...)
}

// EncryptionKey returns the public half of the cluster x25519 key.
func (c *Cluster) EncryptionKey() [sealing.KeySize]byte {
	return c.encryption.Public
}

// SetRandomness replaces the randomness source programs draw from.
func (c *Cluster) SetRandomness(r io.Reader) {
	c.rng = r
}

// RegisterProgram installs the evaluator for the circuit registered as name.
func (c *Cluster) RegisterProgram(name string, fn ProgramFunc) {
	c.programs[name] = fn
}

// Host serves circuit bytes for an off-chain source URL.
func (c *Cluster) Host(url string, bz []byte) {
	c.hosted[url] = append([]byte{}, bz...)
}

// Claim marks a queued request as executing on behalf of the first signer.
func (c *Cluster) Claim(ctx context.Context, o Orchestrator, offset uint64) error {
	return o.MarkExecuting(ctx, c.signers[0].ID, offset)
}

// Execute evaluates the circuit behind a claimed request and returns the
// signed output, signed by the first threshold signers. Nothing is submitted.
func (c *Cluster) Execute(ctx context.Context, o Orchestrator, offset uint64) (types.SignedOutput, error) {
	req, err := o.GetRequest(ctx, offset)
	if err != nil {
		return types.SignedOutput{}, err
	}
	def, err := o.GetDefinition(ctx, req.DefinitionID)
	if err != nil {
		return types.SignedOutput{}, err
	}

	circuit, err := c.fetchCircuit(def)
	if err != nil {
		return types.SignedOutput{}, err
	}
	if err := o.VerifyCircuitBytes(ctx, def.ID, circuit); err != nil {
		return types.SignedOutput{}, err
	}

	program, ok := c.programs[def.Name]
	if !ok {
		return types.SignedOutput{}, fmt.Errorf("simulation: no program for circuit %s", def.Name)
	}

	args, err := types.DecodeArguments(def.Signature.Parameters, req.Arguments)
	if err != nil {
		return types.SignedOutput{}, err
	}
	plaintexts, err := program(args, c.rng)
	if err != nil {
		return types.SignedOutput{}, fmt.Errorf("simulation: %s: %w", def.Name, err)
	}

	ciphertexts, err := c.sealOutputs(args, plaintexts)
	if err != nil {
		return types.SignedOutput{}, err
	}

	indices := make([]uint32, c.threshold)
	for i := range indices {
		indices[i] = uint32(i)
	}
	return c.Sign(req, ciphertexts, indices)
}

// Run claims, executes and submits one request.
func (c *Cluster) Run(ctx context.Context, o Orchestrator, offset uint64) (types.CallbackEvent, error) {
	if err := c.Claim(ctx, o, offset); err != nil {
		return types.CallbackEvent{}, err
	}
	out, err := c.Execute(ctx, o, offset)
	if err != nil {
		return types.CallbackEvent{}, err
	}
	return o.SubmitOutput(ctx, out)
}

// Sign produces the aggregate signature of the given signers over the
// output message for req.
func (c *Cluster) Sign(req types.ComputationRequest, ciphertexts [][types.CiphertextSize]byte, signerIndices []uint32) (types.SignedOutput, error) {
	msg := types.OutputSigningMessage(req.DefinitionID, req.Offset, c.epoch, req.Arguments, ciphertexts)
	hm, err := types.HashToSignatureCurve(msg)
	if err != nil {
		return types.SignedOutput{}, err
	}

	var secret fr.Element
	for _, idx := range signerIndices {
		if int(idx) >= len(c.signers) {
			return types.SignedOutput{}, fmt.Errorf("simulation: signer index %d out of range", idx)
		}
		secret.Add(&secret, &c.signers[idx].secret)
	}

	sig := signWith(secret, hm)
	bz := sig.Bytes()
	return types.SignedOutput{
		Offset:        req.Offset,
		Epoch:         c.epoch,
		Ciphertexts:   ciphertexts,
		SignerIndices: append([]uint32{}, signerIndices...),
		Signature:     bz[:],
	}, nil
}

// sealOutputs encrypts each slot to the requester when the circuit takes the
// shared (x25519 key, nonce) prefix, and passes slots through otherwise.
func (c *Cluster) sealOutputs(args []types.Argument, plaintexts [][sealing.BlockSize]byte) ([][types.CiphertextSize]byte, error) {
	out := make([][types.CiphertextSize]byte, len(plaintexts))
	if len(args) < 2 || args[0].Type != types.ArgX25519PubKey || args[1].Type != types.ArgPlaintextU128 {
		copy(out, plaintexts)
		return out, nil
	}

	userPub, err := args[0].PubKey()
	if err != nil {
		return nil, err
	}
	var nonce [sealing.NonceSize]byte
	copy(nonce[:], args[1].Bytes)

	for i, pt := range plaintexts {
		ct, err := sealing.Seal(c.encryption.Private, userPub, nonce, pt)
		if err != nil {
			return nil, err
		}
		out[i] = ct
	}
	return out, nil
}

func (c *Cluster) fetchCircuit(def types.ComputationDefinition) ([]byte, error) {
	switch def.Source.Kind {
	case types.CircuitSourceInline:
		return def.Source.Bytes, nil
	case types.CircuitSourceOffChain:
		bz, ok := c.hosted[def.Source.URL]
		if !ok {
			return nil, fmt.Errorf("simulation: %s not hosted", def.Source.URL)
		}
		return bz, nil
	default:
		return nil, fmt.Errorf("simulation: unknown circuit source %q", def.Source.Kind)
	}
}

func signWith(secret fr.Element, hm bn254.G1Affine) bn254.G1Affine {
	var sk big.Int
	secret.BigInt(&sk)
	var sig bn254.G1Affine
	sig.ScalarMultiplication(&hm, &sk)
	return sig
}

// digestReader is an endless deterministic byte stream: SHA-256 in counter
// mode over a seed.
type digestReader struct {
	seed    []byte
	counter uint64
	buf     []byte
}

func newDigestReader(seed []byte) *digestReader {
	return &digestReader{seed: append([]byte{}, seed...)}
}

func (r *digestReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.buf) == 0 {
			var ctr [8]byte
			binary.BigEndian.PutUint64(ctr[:], r.counter)
			r.counter++
			sum := sha256.Sum256(append(append([]byte{}, r.seed...), ctr[:]...))
			r.buf = sum[:]
		}
		copied := copy(p[n:], r.buf)
		r.buf = r.buf[copied:]
		n += copied
	}
	return n, nil
}
