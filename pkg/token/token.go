package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// secretKey 是一个全局变量，用于存储服务器在启动时生成的32字节密钥。
// 密钥不持久化，重启后所有未兑换的令牌自动失效。
var secretKey []byte

// ClaimPayload 定义了一次性奖励令牌中需要被签名的数据结构。
// 令牌绑定到(用户, 类别, UTC+9日历日)，并带有过期时刻。
type ClaimPayload struct {
	UserID    uint   `json:"u"`
	Category  string `json:"c"`
	Day       string `json:"d"`
	ExpiresAt int64  `json:"e"`
}

// GenerateSecretKey 生成一个密码学安全的32字节随机密钥。
func GenerateSecretKey() {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		panic("无法生成安全的密钥: " + err.Error())
	}
	secretKey = key
	fmt.Println("HMAC密钥已成功生成。")
}

// GenerateClaimSignature 为一个给定的ClaimPayload生成一个HMAC签名。
// 它返回的是签名的Base64编码字符串。
func GenerateClaimSignature(payload ClaimPayload) (string, error) {
	// 1. 将payload序列化为JSON字符串
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", errors.New("无法序列化Token payload")
	}

	// 2. 使用HMAC-SHA256和密钥对payload进行签名
	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	signature := mac.Sum(nil)

	// 3. 对签名进行Base64编码，并返回
	encodedSignature := base64.RawURLEncoding.EncodeToString(signature)
	return encodedSignature, nil
}

// ValidateClaimSignature 验证一个给定的payload和签名是否匹配，并检查过期时刻。
func ValidateClaimSignature(payload ClaimPayload, signatureB64 string) bool {
	// 1. 过期的令牌直接拒绝
	if payload.ExpiresAt < time.Now().Unix() {
		return false
	}

	// 2. 将传入的payload重新序列化，以确保与签名时的数据格式完全一致
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	// 3. 重新计算预期的签名
	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	expectedSignature := mac.Sum(nil)

	// 4. 解码前端传来的签名
	actualSignature, err := base64.RawURLEncoding.DecodeString(signatureB64)
	if err != nil {
		return false // 签名解码失败
	}

	// 5. 使用 hmac.Equal 进行安全的、时间恒定的比较，防止时序攻击
	return hmac.Equal(expectedSignature, actualSignature)
}
