package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ClientIDClaim JWT 中保存匿名客户端 ID 的声明名，中间件从这里读取
const ClientIDClaim = "client_id"

// ClientIdentity 新签发的匿名客户端身份
type ClientIdentity struct {
	ClientID  string    `json:"client_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthService 负责签发匿名客户端身份。
// 没有账号和密码：每个浏览器持有一个客户端 ID，对应一份持久化记录。
type AuthService struct {
	jwtSecret []byte        // 存储密钥的字节形式
	jwtExpiry time.Duration // JWT 过期时间
	now       func() time.Time
}

// NewAuthService 创建 AuthService 实例。
// jwtSecretKey 应从安全配置中获取。
// jwtExpiryHours 定义 token 过期的小时数。
func NewAuthService(jwtSecretKey string, jwtExpiryHours int) (*AuthService, error) {
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24 * 30 // 默认 30 天
	}
	return &AuthService{
		jwtSecret: []byte(jwtSecretKey),
		jwtExpiry: time.Duration(jwtExpiryHours) * time.Hour,
		now:       time.Now,
	}, nil
}

// IssueClientIdentity 生成新的客户端 ID 并签发 Token。
func (s *AuthService) IssueClientIdentity() (ClientIdentity, error) {
	clientID := uuid.NewString()
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.jwtExpiry)

	token, err := s.generateJWT(clientID, issuedAt, expiresAt)
	if err != nil {
		logrus.WithError(err).Error("Failed to generate JWT token for new client")
		return ClientIdentity{}, ErrInternalServer
	}

	logrus.WithField("client_id", clientID).Info("Client identity issued")
	return ClientIdentity{ClientID: clientID, Token: token, ExpiresAt: expiresAt}, nil
}

// generateJWT 为指定客户端 ID 生成 JWT Token
func (s *AuthService) generateJWT(clientID string, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		ClientIDClaim: clientID,
		"exp":         expiresAt.Unix(),
		"iat":         issuedAt.Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		// 包装签名错误
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
