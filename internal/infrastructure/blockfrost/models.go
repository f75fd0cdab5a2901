package blockfrost

// Wire formats of the Blockfrost API. Lovelace amounts arrive as decimal
// strings and are parsed into int64 at the client boundary.

type epochResponse struct {
	Epoch     int32 `json:"epoch"`
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`
}

type accountResponse struct {
	StakeAddress       string  `json:"stake_address"`
	Active             bool    `json:"active"`
	PoolID             *string `json:"pool_id"`
	RewardsSum         string  `json:"rewards_sum"`
	WithdrawableAmount string  `json:"withdrawable_amount"`
}

type stakeHistoryResponse struct {
	ActiveEpoch int32  `json:"active_epoch"`
	Amount      string `json:"amount"`
	PoolID      string `json:"pool_id"`
}

type rewardResponse struct {
	Epoch  int32  `json:"epoch"`
	Amount string `json:"amount"`
	PoolID string `json:"pool_id"`
	Type   string `json:"type"`
}

type withdrawalResponse struct {
	TxHash string `json:"tx_hash"`
	Amount string `json:"amount"`
}

type mirResponse struct {
	TxHash string `json:"tx_hash"`
	Amount string `json:"amount"`
}

type txResponse struct {
	Hash        string `json:"hash"`
	BlockHeight int64  `json:"block_height"`
	BlockTime   int64  `json:"block_time"`
	Index       int32  `json:"index"`
}

type poolResponse struct {
	PoolID         string   `json:"pool_id"`
	LiveStake      string   `json:"live_stake"`
	LiveDelegators int64    `json:"live_delegators"`
	DeclaredPledge string   `json:"declared_pledge"`
	Registration   []string `json:"registration"`
	Retirement     []string `json:"retirement"`
}

type poolMetadataResponse struct {
	PoolID string `json:"pool_id"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

const (
	actionRegistered   = "registered"
	actionDeregistered = "deregistered"
)

type poolUpdateResponse struct {
	TxHash    string `json:"tx_hash"`
	CertIndex int32  `json:"cert_index"`
	Action    string `json:"action"`
}

type poolUpdateDetailResponse struct {
	PoolID        string   `json:"pool_id"`
	MarginCost    float64  `json:"margin_cost"`
	FixedCost     string   `json:"fixed_cost"`
	RewardAccount string   `json:"reward_account"`
	Owners        []string `json:"owners"`
	ActiveEpoch   int32    `json:"active_epoch"`
}

type poolRetireDetailResponse struct {
	PoolID        string `json:"pool_id"`
	RetiringEpoch int32  `json:"retiring_epoch"`
}

type poolHistoryResponse struct {
	Epoch       int32  `json:"epoch"`
	Blocks      int32  `json:"blocks"`
	ActiveStake string `json:"active_stake"`
	Rewards     string `json:"rewards"`
	Fees        string `json:"fees"`
}
