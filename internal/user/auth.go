package user

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// jwtSecret 是登录令牌的签名密钥，在应用启动时由InitAuth设置。
var jwtSecret []byte

// tokenTTL 是登录令牌的有效期。
var tokenTTL = 72 * time.Hour

// AuthClaims 定义了登录令牌中携带的数据：用户ID和角色。
type AuthClaims struct {
	UserID uint `json:"uid"`
	Role   Role `json:"role"`
	jwt.RegisteredClaims
}

// InitAuth 设置令牌签名密钥和有效期。
// 未配置密钥时随机生成一个，重启后所有已签发的令牌失效（开发模式可接受）。
func InitAuth(secret string, ttl time.Duration) {
	if secret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("无法生成JWT密钥: " + err.Error())
		}
		secret = base64.RawStdEncoding.EncodeToString(key)
		fmt.Println("未配置JWT密钥，已随机生成（重启后令牌失效）。")
	}
	jwtSecret = []byte(secret)
	if ttl > 0 {
		tokenTTL = ttl
	}
}

// IssueToken 为一个用户签发带过期时间的登录令牌。
func IssueToken(u *User) (string, error) {
	now := time.Now()
	claims := AuthClaims{
		UserID: u.ID,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.UUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseToken 解析并验证一个登录令牌，返回其中的声明。
func ParseToken(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		// 只接受HMAC签名算法，防止算法替换攻击
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("意外的签名算法: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("无效的登录令牌")
	}
	return claims, nil
}

// HashPassword 使用bcrypt对明文密码进行哈希。
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("无法哈希密码: %w", err)
	}
	return string(hash), nil
}

// CheckPassword 校验明文密码与存储的bcrypt哈希是否匹配。
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
