package checksum

import "crypto/sha256"

// CalculateCheckSum folds the first four bytes of the sha256 digest of data into a uint32.
func CalculateCheckSum(data []byte) uint32 {
	var result uint32
	bytes := sha256.Sum256(data)

	for i := 0; i < 4; i++ {
		result = result << 8
		result += uint32(bytes[i])
	}

	return result
}

func Verify(data []byte, sum uint32) bool {
	return CalculateCheckSum(data) == sum
}
