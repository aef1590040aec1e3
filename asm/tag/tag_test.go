// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package tag

import (
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/alpenlabs/alpen-sub007/asm/types"
)

var _magic = []byte{0x41, 0x4c, 0x50, 0x4e}

func opReturnTx(t *testing.T, payload []byte) *wire.MsgTx {
	t.Helper()
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(payload).
		Script()
	require.NoError(t, err)
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(wire.NewTxOut(0, script))
	return tx
}

func taggedPayload(id types.SubprotocolID, txType uint8, aux []byte) []byte {
	payload := append([]byte{}, _magic...)
	payload = append(payload, byte(id), txType)
	return append(payload, aux...)
}

func TestParseTag(t *testing.T) {
	require := require.New(t)

	tx := opReturnTx(t, taggedPayload(types.CoreSubprotocolID, 1, []byte{0xde, 0xad}))
	tag, ok := ParseTag(tx, _magic)
	require.True(ok)
	require.Equal(types.CoreSubprotocolID, tag.SubprotocolID)
	require.Equal(uint8(1), tag.TxType)
	require.Equal([]byte{0xde, 0xad}, tag.AuxData)
}

func TestParseTagEmptyAux(t *testing.T) {
	require := require.New(t)

	tx := opReturnTx(t, taggedPayload(types.BridgeSubprotocolID, 7, nil))
	tag, ok := ParseTag(tx, _magic)
	require.True(ok)
	require.Equal(types.BridgeSubprotocolID, tag.SubprotocolID)
	require.Equal(uint8(7), tag.TxType)
	require.Empty(tag.AuxData)
}

func TestParseTagRejects(t *testing.T) {
	require := require.New(t)

	t.Run("no outputs", func(t *testing.T) {
		tx := wire.NewMsgTx(wire.TxVersion)
		_, ok := ParseTag(tx, _magic)
		require.False(ok)
	})
	t.Run("no op_return", func(t *testing.T) {
		tx := wire.NewMsgTx(wire.TxVersion)
		tx.AddTxOut(wire.NewTxOut(1000, []byte{txscript.OP_DUP, txscript.OP_HASH160}))
		_, ok := ParseTag(tx, _magic)
		require.False(ok)
	})
	t.Run("wrong magic", func(t *testing.T) {
		payload := taggedPayload(types.CoreSubprotocolID, 1, nil)
		payload[0] ^= 0xff
		_, ok := ParseTag(opReturnTx(t, payload), _magic)
		require.False(ok)
	})
	t.Run("short payload", func(t *testing.T) {
		// magic plus subprotocol id but no tx type
		payload := append(append([]byte{}, _magic...), byte(types.CoreSubprotocolID))
		_, ok := ParseTag(opReturnTx(t, payload), _magic)
		require.False(ok)
	})
	t.Run("bare op_return", func(t *testing.T) {
		tx := wire.NewMsgTx(wire.TxVersion)
		tx.AddTxOut(wire.NewTxOut(0, []byte{txscript.OP_RETURN}))
		_, ok := ParseTag(tx, _magic)
		require.False(ok)
	})
}

func TestParseTagFirstCarrierOnly(t *testing.T) {
	require := require.New(t)

	// a malformed first OP_RETURN does not fall through to a valid second one
	bad, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData([]byte{0x00}).
		Script()
	require.NoError(err)
	good, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(taggedPayload(types.CoreSubprotocolID, 1, nil)).
		Script()
	require.NoError(err)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(wire.NewTxOut(0, bad))
	tx.AddTxOut(wire.NewTxOut(0, good))
	_, ok := ParseTag(tx, _magic)
	require.False(ok)
}

func TestParseTagSkipsValueOutputs(t *testing.T) {
	require := require.New(t)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(wire.NewTxOut(5000, []byte{txscript.OP_DUP, txscript.OP_HASH160}))
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(taggedPayload(types.BridgeSubprotocolID, 1, []byte{0x01})).
		Script()
	require.NoError(err)
	tx.AddTxOut(wire.NewTxOut(0, script))

	tag, ok := ParseTag(tx, _magic)
	require.True(ok)
	require.Equal(types.BridgeSubprotocolID, tag.SubprotocolID)
}
