package state

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func indexedKey(prefix []byte, index uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], index)
	return kvKey(buf)
}

func addressKey(prefix []byte, addr common.Address) []byte {
	buf := make([]byte, len(prefix)+common.AddressLength)
	copy(buf, prefix)
	copy(buf[len(prefix):], addr.Bytes())
	return kvKey(buf)
}

func periodAddressKey(prefix []byte, period uint64, addr common.Address) []byte {
	buf := make([]byte, len(prefix)+8+1+common.AddressLength)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], period)
	buf[len(prefix)+8] = ':'
	copy(buf[len(prefix)+9:], addr.Bytes())
	return kvKey(buf)
}

var (
	miningParamsKey            = kvKey(miningParamsKeyBytes)
	miningPeriodCountKey       = kvKey(miningPeriodCountKeyBytes)
	miningContributionCountKey = kvKey(miningContributionCountKeyBytes)
)

func miningPeriodKey(number uint64) []byte { return indexedKey(miningPeriodPrefix, number) }

func miningContributionKey(id uint64) []byte { return indexedKey(miningContributionPrefix, id) }

func miningContributorKey(addr common.Address) []byte {
	return addressKey(miningContributorPrefix, addr)
}

func miningDonorAmountKey(period uint64, addr common.Address) []byte {
	return periodAddressKey(miningDonorAmountPrefix, period, addr)
}

func miningDonorStakeKey(period uint64, addr common.Address) []byte {
	return periodAddressKey(miningDonorStakePrefix, period, addr)
}
