package feishu

// BaseResponse 飞书通用响应结构
type BaseResponse struct {
	Code int    `json:"code"` // 错误码，0表示成功
	Msg  string `json:"msg"`
}

// BotMessage 自定义机器人消息
type BotMessage struct {
	Timestamp string           `json:"timestamp,omitempty"`
	Sign      string           `json:"sign,omitempty"`
	MsgType   string           `json:"msg_type"`
	Content   *TextContent     `json:"content,omitempty"`
	Card      *InteractiveCard `json:"card,omitempty"`
}

type TextContent struct {
	Text string `json:"text"`
}

// InteractiveCard 飞书交互式消息卡片
type InteractiveCard struct {
	Config   *CardConfig   `json:"config,omitempty"`
	Header   *CardHeader   `json:"header,omitempty"`
	Elements []CardElement `json:"elements,omitempty"`
}

type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

// CardHeader 卡片标题，Template 为颜色：blue/green/red/orange
type CardHeader struct {
	Title    CardText `json:"title"`
	Template string   `json:"template,omitempty"`
}

// CardText 文本类型：plain_text / lark_md
type CardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type CardElement struct {
	Tag      string        `json:"tag"`
	Text     *CardText     `json:"text,omitempty"`
	Fields   []CardField   `json:"fields,omitempty"`
	Elements []CardElement `json:"elements,omitempty"`
	Content  string        `json:"content,omitempty"`
}

type CardField struct {
	IsShort bool     `json:"is_short"`
	Text    CardText `json:"text"`
}
