package feishu

import "fmt"

// ShortField 构造一个并排显示的字段
func ShortField(label, value string) CardField {
	return CardField{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**%s**\n%s", label, value)}}
}

// NewEventCard 创建设备事件通知卡片
// template: 标题颜色，维修类事件使用 orange，库存告警使用 red
func NewEventCard(title, template string, fields []CardField, note string) InteractiveCard {
	elements := []CardElement{
		{Tag: "div", Fields: fields},
	}
	if note != "" {
		elements = append(elements,
			CardElement{Tag: "hr"},
			CardElement{
				Tag:      "note",
				Elements: []CardElement{{Tag: "plain_text", Content: note}},
			},
		)
	}
	if template == "" {
		template = "blue"
	}
	return InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: title},
			Template: template,
		},
		Elements: elements,
	}
}
