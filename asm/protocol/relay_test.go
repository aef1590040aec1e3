// Copyright (c) 2025 Alpen Labs
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alpenlabs/alpen-sub007/asm/types"
	"github.com/alpenlabs/alpen-sub007/pkg/hash"
)

func TestRelayDelivery(t *testing.T) {
	require := require.New(t)

	relay := NewRelay()
	blockID := hash.Hash256b([]byte("block"))

	core := NewExecContext(relay, types.CoreSubprotocolID, 100, blockID, nil)
	require.Empty(core.InboundMsgs())
	require.Equal(uint64(100), core.BlockHeight())
	require.Equal(blockID, core.BlockID())

	core.RelayMsg(WithdrawalIntentMsg{Amount: 5000, DestScript: []byte{0x51}})
	core.RelayMsg(WithdrawalIntentMsg{Amount: 7000, DestScript: []byte{0x52}})

	bridge := NewExecContext(relay, types.BridgeSubprotocolID, 100, blockID, nil)
	msgs := bridge.InboundMsgs()
	require.Len(msgs, 2)
	require.Equal(WithdrawalIntentMsg{Amount: 5000, DestScript: []byte{0x51}}, msgs[0])
	require.Equal(WithdrawalIntentMsg{Amount: 7000, DestScript: []byte{0x52}}, msgs[1])

	// the inbox is handed over exactly once
	again := NewExecContext(relay, types.BridgeSubprotocolID, 100, blockID, nil)
	require.Empty(again.InboundMsgs())
}

func TestRelayLogs(t *testing.T) {
	require := require.New(t)

	relay := NewRelay()
	blockID := hash.Hash256b([]byte("block"))

	core := NewExecContext(relay, types.CoreSubprotocolID, 1, blockID, nil)
	bridge := NewExecContext(relay, types.BridgeSubprotocolID, 1, blockID, nil)

	require.NoError(core.EmitLog(types.LogKindCheckpointUpdate, []byte("first")))
	require.NoError(bridge.EmitLog(types.LogKindDepositProcessed, []byte("second")))
	require.NoError(core.EmitLog(types.LogKindCheckpointReject, []byte("third")))

	logs := relay.Logs()
	require.Len(logs, 3)
	require.Equal(types.CoreSubprotocolID, logs[0].Source)
	require.Equal(types.LogKindCheckpointUpdate, logs[0].Kind)
	require.Equal(types.BridgeSubprotocolID, logs[1].Source)
	require.Equal(types.CoreSubprotocolID, logs[2].Source)
	require.Equal(types.LogKindCheckpointReject, logs[2].Kind)
}
