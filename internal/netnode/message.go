// Package netnode is the wire layer every role (miner, SPV client,
// rendezvous, adversary variant) is built on: a tag-byte-plus-JSON TCP
// frame, a peer registry, and a small bounded-concurrency broadcaster.
package netnode

// Tag is the single protocol byte that opens every frame.
type Tag byte

const (
	TagAddressRequest  Tag = 'a' // node -> rendezvous, empty body, replies with the peer list
	TagPeerAnnounce    Tag = 'n' // rendezvous <-> peers, a joining descriptor
	TagTransaction     Tag = 't' // any -> node, {"tx_json": "..."}
	TagBlock           Tag = 'b' // miner -> miners, {"blk_json": "..."}
	TagHeader          Tag = 'h' // miner -> SPVs, a header object
	TagProofRequest    Tag = 'r' // any -> miner, {"tx_hash": "..."}, replies with a proof
	TagBalanceRequest  Tag = 'x' // any -> miner, {"identifier": "..."}, replies with an integer
	TagProductShipped  Tag = 'p' // vendor -> colluding SPV (adversary only), a tx hash
)

// Role is the explicit peer-role tag that replaces dynamic dispatch on
// a class name string: handlers key off this value rather than
// matching against a peer's reported type name.
type Role string

const (
	RoleMiner             Role = "miner"
	RoleSelfishMiner      Role = "selfish_miner"
	RoleDoubleSpendMiner  Role = "double_spend_miner"
	RoleSPV               Role = "spv"
	RoleDoubleSpendSPV    Role = "double_spend_spv"
	RoleVendor            Role = "vendor"
)

// Address is a peer's dial target.
type Address struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Descriptor is what a node announces about itself to the rendezvous,
// and what the rendezvous replays to every peer.
type Descriptor struct {
	Address Address `json:"address"`
	PubKey  string  `json:"pubkey"`
	Role    Role    `json:"role"`
}

// AddressListReply is the body of the rendezvous's reply to "a".
type AddressListReply struct {
	Addresses []Descriptor `json:"addresses"`
}

// TransactionBody is the body of a "t" message.
type TransactionBody struct {
	TxJSON string `json:"tx_json"`
}

// BlockBody is the body of a "b" message.
type BlockBody struct {
	BlkJSON string `json:"blk_json"`
}

// ProofRequestBody is the body of an "r" request.
type ProofRequestBody struct {
	TxHash string `json:"tx_hash"`
}

// ProofReplyBody is the body of the reply to "r". BlockHash and
// LastBlockHash are both required to be independently known headers by
// the requester before the proof is trusted -- the eclipse-resistance
// check spec.md describes.
type ProofReplyBody struct {
	BlockHash     string `json:"blk_hash"`
	Proof         []ProofStepJSON `json:"proof"`
	LastBlockHash string `json:"last_blk_hash"`
}

// ProofStepJSON mirrors merkle.ProofStep over the wire.
type ProofStepJSON struct {
	SiblingHash string `json:"sibling_hash"`
	Direction   string `json:"direction"`
}

// BalanceRequestBody is the body of an "x" request.
type BalanceRequestBody struct {
	Identifier string `json:"identifier"`
}

// SPVStubReply is the literal reply an SPV client gives to "r"/"x": a
// quorum-filtering stub, never a real answer.
const SPVStubReply = "spv"
