package state

var (
	miningParamsKeyBytes            = []byte("mining/params")
	miningPeriodCountKeyBytes       = []byte("mining/period-count")
	miningPeriodPrefix              = []byte("mining/period/")
	miningDonorAmountPrefix         = []byte("mining/donor-amount/")
	miningDonorStakePrefix          = []byte("mining/donor-stake/")
	miningContributorPrefix         = []byte("mining/contributor/")
	miningContributionCountKeyBytes = []byte("mining/contribution-count")
	miningContributionPrefix        = []byte("mining/contribution/")
)
