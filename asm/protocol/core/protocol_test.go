// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package core

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"github.com/alpenlabs/alpen-sub007/asm/protocol"
	"github.com/alpenlabs/alpen-sub007/asm/tag"
	"github.com/alpenlabs/alpen-sub007/asm/types"
	"github.com/alpenlabs/alpen-sub007/crypto/predicate"
	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

type testEnv struct {
	protocol *Protocol
	state    *CheckpointState
	seqKey   *btcec.PrivateKey
	adminKey *btcec.PrivateKey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	seqKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	adminKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	params := Params{
		GenesisTip: CheckpointTip{
			Epoch:        0,
			L1Height:     100,
			L2Commitment: hash.Hash256b([]byte("genesis-l2")),
		},
		Sequencer: predicate.Predicate{
			Scheme: predicate.SchnorrScheme,
			Key:    schnorr.SerializePubKey(seqKey.PubKey()),
		},
		Checkpoint: predicate.Predicate{Scheme: predicate.NativeScheme},
		Admin: predicate.Predicate{
			Scheme: predicate.SchnorrScheme,
			Key:    schnorr.SerializePubKey(adminKey.PubKey()),
		},
	}
	p := New(params, predicate.NewRegistry(predicate.WithNativeProofs()))
	return &testEnv{
		protocol: p,
		state:    p.InitState().(*CheckpointState),
		seqKey:   seqKey,
		adminKey: adminKey,
	}
}

func signCheckpoint(t *testing.T, key *btcec.PrivateKey, payload CheckpointPayload) []byte {
	t.Helper()
	sc := SignedCheckpoint{Payload: payload}
	digest, err := sc.Payload.SigningDigest()
	require.NoError(t, err)
	sig, err := schnorr.Sign(key, digest[:])
	require.NoError(t, err)
	sc.Signature = sig.Serialize()
	enc, err := sc.Encode()
	require.NoError(t, err)
	return enc
}

func checkpointTx(t *testing.T, blockIdx uint32, aux []byte) *tag.TxInputRef {
	t.Helper()
	return tag.NewTxInputRef(wire.NewMsgTx(wire.TxVersion), blockIdx, tag.Tag{
		SubprotocolID: types.CoreSubprotocolID,
		TxType:        TxTypeCheckpoint,
		AuxData:       aux,
	})
}

func adminTx(t *testing.T, blockIdx uint32, aux []byte) *tag.TxInputRef {
	t.Helper()
	return tag.NewTxInputRef(wire.NewMsgTx(wire.TxVersion), blockIdx, tag.Tag{
		SubprotocolID: types.CoreSubprotocolID,
		TxType:        TxTypeAdmin,
		AuxData:       aux,
	})
}

func rangeDigests(from, to uint64) []hash.Hash256 {
	digests := make([]hash.Hash256, 0, to-from)
	for h := from + 1; h <= to; h++ {
		digests = append(digests, hash.Hash256b([]byte{byte(h >> 8), byte(h)}))
	}
	return digests
}

func execContext(relay *protocol.Relay, blockHeight uint64, aux []protocol.AuxPayload) *protocol.ExecContext {
	return protocol.NewExecContext(relay, types.CoreSubprotocolID, blockHeight, hash.Hash256b([]byte("block")), aux)
}

func TestAcceptCheckpoint(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	wi, err := rlp.EncodeToBytes(&WithdrawalIntent{Amount: 42000, DestScript: []byte{0x51}})
	require.NoError(err)
	ol, err := rlp.EncodeToBytes(&OLLog{Kind: OLLogWithdrawalIntent, Data: wi})
	require.NoError(err)

	newTip := CheckpointTip{Epoch: 1, L1Height: 103, L2Commitment: hash.Hash256b([]byte("l2-1"))}
	aux := signCheckpoint(t, env.seqKey, CheckpointPayload{
		NewTip:  newTip,
		Sidecar: CheckpointSidecar{OLLogs: [][]byte{ol}},
	})

	relay := protocol.NewRelay()
	ctx := execContext(relay, 105, []protocol.AuxPayload{{LogDigests: rangeDigests(100, 103)}})
	require.NoError(env.protocol.ProcessTxs(ctx, env.state, []*tag.TxInputRef{checkpointTx(t, 3, aux)}))

	require.Equal(newTip, env.state.VerifiedTip)

	logs := relay.Logs()
	require.Len(logs, 1)
	require.Equal(types.LogKindCheckpointUpdate, logs[0].Kind)
	var upd CheckpointUpdateLog
	require.NoError(rlp.DecodeBytes(logs[0].Data, &upd))
	require.Equal(uint32(3), upd.TxIndex)
	require.Equal(uint64(1), upd.Epoch)
	require.Equal(uint64(103), upd.L1Height)
	require.Equal(newTip.L2Commitment, upd.L2Commitment)

	// withdrawal intents from the sidecar are relayed to the bridge
	bridgeCtx := protocol.NewExecContext(relay, types.BridgeSubprotocolID, 105, hash.ZeroHash256, nil)
	msgs := bridgeCtx.InboundMsgs()
	require.Len(msgs, 1)
	require.Equal(protocol.WithdrawalIntentMsg{Amount: 42000, DestScript: []byte{0x51}}, msgs[0])
}

func TestAcceptCheckpointAtCurrentHeight(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	// a claim at the height of the containing block commits over anchored
	// heights only, so the resolved digests stop one short of the claim
	newTip := CheckpointTip{Epoch: 1, L1Height: 105, L2Commitment: hash.Hash256b([]byte("l2-1"))}
	aux := signCheckpoint(t, env.seqKey, CheckpointPayload{NewTip: newTip})

	relay := protocol.NewRelay()
	ctx := execContext(relay, 105, []protocol.AuxPayload{{LogDigests: rangeDigests(100, 104)}})
	require.NoError(env.protocol.ProcessTxs(ctx, env.state, []*tag.TxInputRef{checkpointTx(t, 0, aux)}))

	require.Equal(newTip, env.state.VerifiedTip)
	logs := relay.Logs()
	require.Len(logs, 1)
	require.Equal(types.LogKindCheckpointUpdate, logs[0].Kind)
}

func TestRejectEpochSkip(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	aux := signCheckpoint(t, env.seqKey, CheckpointPayload{
		NewTip: CheckpointTip{Epoch: 2, L1Height: 103},
	})
	relay := protocol.NewRelay()
	ctx := execContext(relay, 105, []protocol.AuxPayload{{LogDigests: rangeDigests(100, 103)}})
	require.NoError(env.protocol.ProcessTxs(ctx, env.state, []*tag.TxInputRef{checkpointTx(t, 0, aux)}))

	require.Equal(uint64(0), env.state.VerifiedTip.Epoch)
	logs := relay.Logs()
	require.Len(logs, 1)
	require.Equal(types.LogKindCheckpointReject, logs[0].Kind)
	var rej CheckpointRejectLog
	require.NoError(rlp.DecodeBytes(logs[0].Data, &rej))
	require.Equal((&InvalidEpochError{Expected: 1, Actual: 2}).Error(), rej.Reason)
}

func TestRejectBadSignature(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	intruder, err := btcec.NewPrivateKey()
	require.NoError(err)
	aux := signCheckpoint(t, intruder, CheckpointPayload{
		NewTip: CheckpointTip{Epoch: 1, L1Height: 103},
	})
	relay := protocol.NewRelay()
	ctx := execContext(relay, 105, []protocol.AuxPayload{{LogDigests: rangeDigests(100, 103)}})
	require.NoError(env.protocol.ProcessTxs(ctx, env.state, []*tag.TxInputRef{checkpointTx(t, 0, aux)}))

	require.Equal(uint64(0), env.state.VerifiedTip.Epoch)
	logs := relay.Logs()
	require.Len(logs, 1)
	var rej CheckpointRejectLog
	require.NoError(rlp.DecodeBytes(logs[0].Data, &rej))
	require.Equal(ErrInvalidSignature.Error(), rej.Reason)
}

func TestRejectL1Height(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name     string
		l1Height uint64
		reason   string
	}{
		{"not advancing", 100, (&InvalidL1BlockHeightError{Tip: 100, Actual: 100}).Error()},
		{"behind tip", 99, (&InvalidL1BlockHeightError{Tip: 100, Actual: 99}).Error()},
		{"beyond anchored tip", 106, ErrCheckpointBeyondL1Tip.Error()},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require := require.New(t)
			aux := signCheckpoint(t, env.seqKey, CheckpointPayload{
				NewTip: CheckpointTip{Epoch: 1, L1Height: c.l1Height},
			})
			relay := protocol.NewRelay()
			ctx := execContext(relay, 105, []protocol.AuxPayload{{}})
			require.NoError(env.protocol.ProcessTxs(ctx, env.state, []*tag.TxInputRef{checkpointTx(t, 0, aux)}))

			require.Equal(uint64(0), env.state.VerifiedTip.Epoch)
			logs := relay.Logs()
			require.Len(logs, 1)
			var rej CheckpointRejectLog
			require.NoError(rlp.DecodeBytes(logs[0].Data, &rej))
			require.Equal(c.reason, rej.Reason)
		})
	}
}

func TestRejectAuxMismatch(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	aux := signCheckpoint(t, env.seqKey, CheckpointPayload{
		NewTip: CheckpointTip{Epoch: 1, L1Height: 103},
	})
	relay := protocol.NewRelay()
	// resolved digests cover only two of the three claimed heights
	ctx := execContext(relay, 105, []protocol.AuxPayload{{LogDigests: rangeDigests(100, 102)}})
	require.NoError(env.protocol.ProcessTxs(ctx, env.state, []*tag.TxInputRef{checkpointTx(t, 0, aux)}))

	require.Equal(uint64(0), env.state.VerifiedTip.Epoch)
	logs := relay.Logs()
	require.Len(logs, 1)
	var rej CheckpointRejectLog
	require.NoError(rlp.DecodeBytes(logs[0].Data, &rej))
	require.Equal(ErrAuxMismatch.Error(), rej.Reason)
}

func TestRejectMalformedCheckpoint(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	relay := protocol.NewRelay()
	ctx := execContext(relay, 105, nil)
	require.NoError(env.protocol.ProcessTxs(ctx, env.state, []*tag.TxInputRef{checkpointTx(t, 0, []byte("garbage"))}))

	require.Equal(uint64(0), env.state.VerifiedTip.Epoch)
	logs := relay.Logs()
	require.Len(logs, 1)
	require.Equal(types.LogKindCheckpointReject, logs[0].Kind)
}

func TestRejectionIsTxLocal(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	// first submission skips an epoch and is rejected; the second chains its
	// aux range off the first's claim, so its resolved range no longer starts
	// at the verified tip and it is rejected too
	bad := signCheckpoint(t, env.seqKey, CheckpointPayload{
		NewTip: CheckpointTip{Epoch: 2, L1Height: 102},
	})
	chained := signCheckpoint(t, env.seqKey, CheckpointPayload{
		NewTip: CheckpointTip{Epoch: 1, L1Height: 103},
	})
	relay := protocol.NewRelay()
	ctx := execContext(relay, 105, []protocol.AuxPayload{
		{LogDigests: rangeDigests(100, 102)},
		{LogDigests: rangeDigests(102, 103)},
	})
	require.NoError(env.protocol.ProcessTxs(ctx, env.state, []*tag.TxInputRef{
		checkpointTx(t, 0, bad),
		checkpointTx(t, 1, chained),
	}))

	require.Equal(uint64(0), env.state.VerifiedTip.Epoch)
	logs := relay.Logs()
	require.Len(logs, 2)
	require.Equal(types.LogKindCheckpointReject, logs[0].Kind)
	require.Equal(types.LogKindCheckpointReject, logs[1].Kind)
	var rej CheckpointRejectLog
	require.NoError(rlp.DecodeBytes(logs[1].Data, &rej))
	require.Equal(ErrAuxMismatch.Error(), rej.Reason)
}

func TestAuxRequestsChain(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	first := signCheckpoint(t, env.seqKey, CheckpointPayload{
		NewTip: CheckpointTip{Epoch: 1, L1Height: 103},
	})
	second := signCheckpoint(t, env.seqKey, CheckpointPayload{
		NewTip: CheckpointTip{Epoch: 2, L1Height: 105},
	})
	reqs := env.protocol.AuxRequests(env.state, []*tag.TxInputRef{
		checkpointTx(t, 0, first),
		adminTx(t, 1, []byte("ignored")),
		checkpointTx(t, 2, []byte("undecodable")),
		checkpointTx(t, 3, second),
	})
	require.Equal([]protocol.AuxRequest{
		{Kind: protocol.AuxLogRange, FromHeight: 100, ToHeight: 103},
		{Kind: protocol.AuxLogRange, FromHeight: 103, ToHeight: 105},
	}, reqs)
}

func TestAdminUpdate(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	newSeqKey, err := btcec.NewPrivateKey()
	require.NoError(err)
	newSeq := predicate.Predicate{
		Scheme: predicate.SchnorrScheme,
		Key:    schnorr.SerializePubKey(newSeqKey.PubKey()),
	}

	signAdmin := func(key *btcec.PrivateKey, payload AdminUpdatePayload) []byte {
		digest, err := payload.SigningDigest()
		require.NoError(err)
		sig, err := schnorr.Sign(key, digest[:])
		require.NoError(err)
		enc, err := rlp.EncodeToBytes(&SignedAdminUpdate{Payload: payload, Signature: sig.Serialize()})
		require.NoError(err)
		return enc
	}

	relay := protocol.NewRelay()
	ctx := execContext(relay, 105, nil)

	// nonce must advance by exactly one
	skipped := signAdmin(env.adminKey, AdminUpdatePayload{Nonce: 2, Sequencer: newSeq, Checkpoint: env.state.CheckpointPredicate})
	require.NoError(env.protocol.ProcessTxs(ctx, env.state, []*tag.TxInputRef{adminTx(t, 0, skipped)}))
	require.Equal(uint64(0), env.state.AdminNonce)

	// non-admin signatures are ignored
	forged := signAdmin(env.seqKey, AdminUpdatePayload{Nonce: 1, Sequencer: newSeq, Checkpoint: env.state.CheckpointPredicate})
	require.NoError(env.protocol.ProcessTxs(ctx, env.state, []*tag.TxInputRef{adminTx(t, 0, forged)}))
	require.Equal(uint64(0), env.state.AdminNonce)

	oldSeq := env.state.SequencerPredicate
	valid := signAdmin(env.adminKey, AdminUpdatePayload{Nonce: 1, Sequencer: newSeq, Checkpoint: env.state.CheckpointPredicate})
	require.NoError(env.protocol.ProcessTxs(ctx, env.state, []*tag.TxInputRef{adminTx(t, 0, valid)}))
	require.Equal(uint64(1), env.state.AdminNonce)
	require.Equal(newSeq, env.state.SequencerPredicate)
	require.NotEqual(oldSeq, env.state.SequencerPredicate)

	// replay of the applied nonce is ignored
	require.NoError(env.protocol.ProcessTxs(ctx, env.state, []*tag.TxInputRef{adminTx(t, 0, valid)}))
	require.Equal(uint64(1), env.state.AdminNonce)

	// checkpoints signed by the replaced sequencer key are now rejected
	stale := signCheckpoint(t, env.seqKey, CheckpointPayload{
		NewTip: CheckpointTip{Epoch: 1, L1Height: 103},
	})
	require.NoError(env.protocol.ProcessTxs(ctx, env.state, []*tag.TxInputRef{checkpointTx(t, 0, stale)}))
	require.Equal(uint64(0), env.state.VerifiedTip.Epoch)

	fresh := signCheckpoint(t, newSeqKey, CheckpointPayload{
		NewTip: CheckpointTip{Epoch: 1, L1Height: 103},
	})
	ctx2 := execContext(protocol.NewRelay(), 105, []protocol.AuxPayload{{LogDigests: rangeDigests(100, 103)}})
	require.NoError(env.protocol.ProcessTxs(ctx2, env.state, []*tag.TxInputRef{checkpointTx(t, 0, fresh)}))
	require.Equal(uint64(1), env.state.VerifiedTip.Epoch)
}

func TestStateRoundTrip(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	env.state.VerifiedTip = CheckpointTip{Epoch: 3, L1Height: 110, L2Commitment: hash.Hash256b([]byte("l2"))}
	env.state.AdminNonce = 2

	ser, err := env.state.Serialize()
	require.NoError(err)
	var back CheckpointState
	require.NoError(back.Deserialize(ser))
	require.Equal(env.state.VerifiedTip, back.VerifiedTip)
	require.Equal(env.state.SequencerPredicate, back.SequencerPredicate)
	require.Equal(env.state.AdminNonce, back.AdminNonce)

	require.Error(back.Deserialize([]byte("junk")))
}

func TestL1RangeCommitment(t *testing.T) {
	require := require.New(t)

	require.Equal(hash.ZeroHash256, L1RangeCommitment(nil))

	d := rangeDigests(0, 3)
	c1 := L1RangeCommitment(d)
	require.False(c1.IsZero())
	require.Equal(c1, L1RangeCommitment(rangeDigests(0, 3)))

	// order matters
	swapped := []hash.Hash256{d[1], d[0], d[2]}
	require.NotEqual(c1, L1RangeCommitment(swapped))
}
