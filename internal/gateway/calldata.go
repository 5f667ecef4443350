package gateway

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event topics and the pong function selector are computed once from their
// canonical signatures rather than pulled in through a generated ABI
// binding — a full accounts/abi/bind contract wrapper is overkill for the
// single call this bot ever makes.
var (
	pingEventTopic = crypto.Keccak256Hash([]byte("Ping()"))
	pongEventTopic = crypto.Keccak256Hash([]byte("Pong(bytes32)"))
	pongSelector   = crypto.Keccak256([]byte("pong(bytes32)"))[:4]
)

// encodePongCalldata builds the calldata for pong(bytes32 pingHash).
func encodePongCalldata(pingHash common.Hash) []byte {
	data := make([]byte, 0, len(pongSelector)+32)
	data = append(data, pongSelector...)
	data = append(data, pingHash.Bytes()...)
	return data
}

// decodePongCalldata extracts the ping hash argument from pong(bytes32)
// calldata, returning ok=false if data isn't a well-formed call to it.
func decodePongCalldata(data []byte) (pingHash common.Hash, ok bool) {
	if len(data) != 4+32 {
		return common.Hash{}, false
	}
	for i, b := range pongSelector {
		if data[i] != b {
			return common.Hash{}, false
		}
	}
	return common.BytesToHash(data[4:]), true
}

func parseHash(s string) (common.Hash, error) {
	if len(s) != 66 { // "0x" + 64 hex chars
		return common.Hash{}, fmt.Errorf("gateway: malformed hash %q", s)
	}
	return common.HexToHash(s), nil
}
