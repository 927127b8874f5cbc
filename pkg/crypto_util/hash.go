package crypto_util

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"lukechampine.com/blake3"
)

// CalculateSHA256 计算输入的 SHA256 哈希值。
func CalculateSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// CalculateBlake3 计算输入的 Blake3 哈希值。
func CalculateBlake3(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Fingerprint 对请求体做 JSON 规范化后取 Blake3，用于幂等键比对。
// map 的 key 在 encoding/json 中有序，结构体字段顺序固定。
func Fingerprint(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return CalculateBlake3(raw), nil
}
