package relayer

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// escrowABI is the subset of the escrow contract's interface this relay
// calls: the state-changing entry points it submits transactions to, the
// view functions it reads order/trade/config state from, and the custom
// errors a revert can carry — used to turn a revert selector back into a
// ValidationCode rather than surfacing an opaque "execution reverted".
const escrowABI = `[
	{"type":"function","name":"fillOrder","stateMutability":"nonpayable",
	 "inputs":[{"name":"orderId","type":"bytes32"},{"name":"buyer","type":"address"},{"name":"fiatAmount","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"submitProof","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"tradeId","type":"bytes32"},
		{"name":"txIdHash","type":"bytes32"},
		{"name":"paymentTime","type":"string"},
		{"name":"userPublicValues","type":"bytes32"},
		{"name":"accumulator","type":"bytes"},
		{"name":"proof","type":"bytes"}
	 ],
	 "outputs":[]},
	{"type":"function","name":"cancelExpiredTrade","stateMutability":"nonpayable",
	 "inputs":[{"name":"tradeId","type":"bytes32"}],
	 "outputs":[]},
	{"type":"function","name":"updatePublicKeyHash","stateMutability":"nonpayable",
	 "inputs":[{"name":"newHash","type":"bytes32"}],
	 "outputs":[]},
	{"type":"function","name":"order","stateMutability":"view",
	 "inputs":[{"name":"orderId","type":"bytes32"}],
	 "outputs":[
		{"name":"orderId","type":"bytes32"},
		{"name":"seller","type":"address"},
		{"name":"token","type":"address"},
		{"name":"totalAmount","type":"uint256"},
		{"name":"remainingAmount","type":"uint256"},
		{"name":"exchangeRate","type":"uint256"},
		{"name":"rail","type":"uint8"},
		{"name":"accountLinesHash","type":"bytes32"},
		{"name":"isPublic","type":"bool"},
		{"name":"createdAt","type":"uint256"},
		{"name":"tokenDecimals","type":"uint8"}
	 ]},
	{"type":"function","name":"trade","stateMutability":"view",
	 "inputs":[{"name":"tradeId","type":"bytes32"}],
	 "outputs":[
		{"name":"tradeId","type":"bytes32"},
		{"name":"orderId","type":"bytes32"},
		{"name":"buyer","type":"address"},
		{"name":"tokenAmount","type":"uint256"},
		{"name":"status","type":"uint8"}
	 ]},
	{"type":"function","name":"verifiers","stateMutability":"view",
	 "inputs":[{"name":"rail","type":"uint8"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"config","stateMutability":"view",
	 "inputs":[],
	 "outputs":[
		{"name":"minTradeValue","type":"uint256"},
		{"name":"maxTradeValue","type":"uint256"},
		{"name":"paymentWindow","type":"uint256"},
		{"name":"paused","type":"bool"}
	 ]},
	{"type":"error","name":"ReplayAttack","inputs":[]},
	{"type":"error","name":"PaymentTooOld","inputs":[]},
	{"type":"error","name":"HashMismatch","inputs":[]},
	{"type":"error","name":"AlreadyUsed","inputs":[]},
	{"type":"error","name":"TradeNotPending","inputs":[]},
	{"type":"error","name":"TradeExpired","inputs":[]},
	{"type":"error","name":"VerificationFailed","inputs":[]},
	{"type":"error","name":"ContractPaused","inputs":[]}
]`

// verifierABI is the minimal AlipayVerifier contract interface: a single
// view function exposing the registered signer public-key hash, consulted
// during optimistic key rotation.
const verifierABI = `[
	{"type":"function","name":"publicKeyHash","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]}
]`

func parseEscrowABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(escrowABI))
}

func parseVerifierABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(verifierABI))
}
