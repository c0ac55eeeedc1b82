package feishu

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// =============================================================================
// BotClient 飞书群自定义机器人
// 通过 webhook 地址推送文本或卡片消息，配置了签名密钥时自动签名
// =============================================================================

// BotClient 自定义机器人客户端
type BotClient struct {
	webhookURL string
	secret     string
	httpClient *http.Client
	now        func() time.Time
}

// NewBotClient 创建机器人客户端，secret 可为空
func NewBotClient(webhookURL, secret string) *BotClient {
	return &BotClient{
		webhookURL: webhookURL,
		secret:     secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

// SendText 发送文本消息
func (c *BotClient) SendText(ctx context.Context, text string) error {
	return c.send(ctx, &BotMessage{
		MsgType: "text",
		Content: &TextContent{Text: text},
	})
}

// SendCard 发送交互式卡片
func (c *BotClient) SendCard(ctx context.Context, card InteractiveCard) error {
	return c.send(ctx, &BotMessage{
		MsgType: "interactive",
		Card:    &card,
	})
}

func (c *BotClient) send(ctx context.Context, msg *BotMessage) error {
	if c.secret != "" {
		ts := c.now().Unix()
		sign, err := genSign(c.secret, ts)
		if err != nil {
			return fmt.Errorf("生成签名失败: %w", err)
		}
		msg.Timestamp = strconv.FormatInt(ts, 10)
		msg.Sign = sign
	}

	bodyBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("机器人返回HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var baseResp BaseResponse
	if err := json.Unmarshal(respBody, &baseResp); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if baseResp.Code != 0 {
		return fmt.Errorf("飞书机器人错误[%d]: %s", baseResp.Code, baseResp.Msg)
	}
	return nil
}

// genSign 签名：以 timestamp + "\n" + secret 为密钥对空串做 HmacSHA256，再 base64
func genSign(secret string, timestamp int64) (string, error) {
	key := fmt.Sprintf("%d\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(key))
	if _, err := h.Write([]byte{}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}
