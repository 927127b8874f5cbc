package crypto_util

import (
	"testing"
)

func TestHashes(t *testing.T) {
	input := []byte("hello world")

	sha256Hash := CalculateSHA256(input)
	if len(sha256Hash) != 64 {
		t.Errorf("SHA256 哈希长度不匹配: 得到 %d, 期望 64", len(sha256Hash))
	}

	blake3Hash := CalculateBlake3(input)
	if len(blake3Hash) != 64 {
		t.Errorf("Blake3 哈希长度不匹配: 得到 %d, 期望 64", len(blake3Hash))
	}
	if blake3Hash == sha256Hash {
		t.Errorf("Blake3 与 SHA256 结果不应相同")
	}
}

func TestFingerprint(t *testing.T) {
	type req struct {
		WalletID string `json:"wallet_id"`
		Amount   string `json:"amount"`
	}

	a, err := Fingerprint(req{"w1", "10.00"})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Fingerprint(req{"w1", "10.00"})
	c, _ := Fingerprint(req{"w1", "10.01"})

	if a != b {
		t.Errorf("相同请求的指纹不一致: %s != %s", a, b)
	}
	if a == c {
		t.Errorf("不同金额的指纹不应相同")
	}

	if _, err := Fingerprint(func() {}); err == nil {
		t.Errorf("不可序列化的值应返回错误")
	}
}
