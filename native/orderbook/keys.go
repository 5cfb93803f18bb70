package orderbook

import "encoding/binary"

var (
	filledPrefix    = []byte("orderbook/filled/")
	partPrefix      = []byte("orderbook/part/")
	segmentsPrefix  = []byte("orderbook/segments/")
	userPrefix      = []byte("orderbook/user/")
	allowancePrefix = []byte("orderbook/allowance/")
)

func filledKey(orderHash [32]byte) []byte {
	return append(append([]byte(nil), filledPrefix...), orderHash[:]...)
}

func partKey(orderHash [32]byte, index uint64) []byte {
	buf := make([]byte, 0, len(partPrefix)+32+8)
	buf = append(buf, partPrefix...)
	buf = append(buf, orderHash[:]...)
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)
	return append(buf, idx[:]...)
}

func segmentsKey(orderHash [32]byte) []byte {
	return append(append([]byte(nil), segmentsPrefix...), orderHash[:]...)
}

func userKey(addr [20]byte) []byte {
	return append(append([]byte(nil), userPrefix...), addr[:]...)
}

func allowanceKey(owner [20]byte) []byte {
	return append(append([]byte(nil), allowancePrefix...), owner[:]...)
}
