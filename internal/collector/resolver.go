package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultResolveTimeout = 5 * time.Second

// LinkResolver 通过一次 HEAD 请求读取跳转目标，不跟随后续跳转
type LinkResolver struct {
	client *http.Client
}

func NewLinkResolver(timeout time.Duration) *LinkResolver {
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	return &LinkResolver{client: &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

// Resolve 对 feed 站内链接直接返回；否则返回 Location 头，缺失时回退为原链接。
// 网络错误直接返回给调用方。
func (r *LinkResolver) Resolve(ctx context.Context, rawLink, feedHostPrefix string) (string, error) {
	if feedHostPrefix != "" && strings.HasPrefix(rawLink, feedHostPrefix) {
		return rawLink, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawLink, nil)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", rawLink, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", rawLink, err)
	}
	defer resp.Body.Close()

	// Location() 会把相对地址补全为绝对地址
	loc, err := resp.Location()
	if err != nil {
		return rawLink, nil
	}
	return loc.String(), nil
}
