package ethgateway

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// htlcABIJSON is the escrow contract's wire surface: deposit, reveal and the
// Revealed event. The gateway calls only reveal, which takes the preimage
// alone; no gateway method calls deposit.
const htlcABIJSON = `[
	{"constant":false,"inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"name":"deposit","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"preimage","type":"bytes32"}],"name":"reveal","outputs":[],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":false,"name":"preimage","type":"bytes32"}],"name":"Revealed","type":"event"}
]`

var htlcABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(htlcABIJSON))
	if err != nil {
		panic("ethgateway: invalid embedded htlc abi: " + err.Error())
	}
	htlcABI = parsed
}
