package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Options 控制签名与TTL等参数。
type Options struct {
	Secret []byte        // HMAC 密钥（生产用ENV/KMS）
	Alg    string        // HS256/HS384/HS512（默认 HS256）
	TTL    time.Duration // 令牌有效期（默认 2h）
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 2 * time.Hour}
}

// Identity 当前登录身份。引擎内所有需要 userId / token 的地方都从这里取。
type Identity struct {
	UserID int64
	Token  string
}

// Provider 提供当前身份；未登录时返回 ok=false。
// 会话管理器和 REST 客户端只依赖这个接口，不关心令牌从哪来。
type Provider interface {
	Current() (Identity, bool)
}

// StaticProvider 进程内持有一份身份，登录/登出时整体替换。
type StaticProvider struct {
	mu sync.RWMutex
	id *Identity
}

func NewStaticProvider() *StaticProvider { return &StaticProvider{} }

func (p *StaticProvider) SetIdentity(id Identity) {
	p.mu.Lock()
	p.id = &id
	p.mu.Unlock()
}

func (p *StaticProvider) Clear() {
	p.mu.Lock()
	p.id = nil
	p.mu.Unlock()
}

func (p *StaticProvider) Current() (Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.id == nil {
		return Identity{}, false
	}
	return *p.id, true
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Generate 签发携带 sub=userID 的令牌（测试与 mock 网关用）。
func Generate(opts Options, userID int64) (string, time.Time, error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	claims := jwtlib.MapClaims{
		"sub": fmt.Sprintf("%d", userID),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	tok := jwtlib.NewWithClaims(method, claims)
	signed, err := tok.SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseIdentity 校验令牌并从 sub 取 userID，登录成功后喂给 StaticProvider。
func ParseIdentity(opts Options, token string) (Identity, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// 仅允许 HMAC 家族
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !parsed.Valid {
		return Identity{}, errors.New("invalid token")
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Identity{}, errors.New("unexpected claims type")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, errors.New("token missing sub")
	}
	var uid int64
	if _, err := fmt.Sscanf(sub, "%d", &uid); err != nil {
		return Identity{}, fmt.Errorf("sub %q not numeric: %w", sub, err)
	}
	return Identity{UserID: uid, Token: token}, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch alg {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg %q", alg)
	}
}
