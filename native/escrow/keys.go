package escrow

import "encoding/binary"

var (
	recordPrefix      = []byte("escrow/record/")
	userIndexPrefix   = []byte("escrow/index/user/")
	allowancePrefix   = []byte("escrow/allowance/")
	partUsedPrefix    = []byte("escrow/partial/used/")
	partCountPrefix   = []byte("escrow/partial/count/")
	escrowCounterKey  = []byte("escrow/counter")
	escrowExistPrefix = []byte("escrow/exists/")
)

func recordKey(id [32]byte) []byte {
	return append(append([]byte(nil), recordPrefix...), id[:]...)
}

func userIndexKey(addr [20]byte) []byte {
	return append(append([]byte(nil), userIndexPrefix...), addr[:]...)
}

func allowanceKey(owner [20]byte) []byte {
	return append(append([]byte(nil), allowancePrefix...), owner[:]...)
}

func existsKey(id [32]byte) []byte {
	return append(append([]byte(nil), escrowExistPrefix...), id[:]...)
}

func partUsedKey(root [32]byte, index uint64) []byte {
	buf := make([]byte, 0, len(partUsedPrefix)+32+8)
	buf = append(buf, partUsedPrefix...)
	buf = append(buf, root[:]...)
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)
	return append(buf, idx[:]...)
}

func partCountKey(root [32]byte) []byte {
	return append(append([]byte(nil), partCountPrefix...), root[:]...)
}
