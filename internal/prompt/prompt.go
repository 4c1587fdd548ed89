// Package prompt 负责 Prompt 模板的加载、校验与组装
// 模板使用 {hackprompt} / {history} / {input} 三个占位符：
// hackprompt 在会话层面静态替换，history 和 input 留给每次请求填充
package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"hackgpt-server/internal/model"
)

// 模板占位符
const (
	PlaceholderHackPrompt = "{hackprompt}"
	PlaceholderHistory    = "{history}"
	PlaceholderInput      = "{input}"
)

// DefaultHackPrompt Hack Prompt 为空时替换进模板的固定文本
const DefaultHackPrompt = "No additional prompt"

// DefaultTemplate 内置默认模板
// 配置未指定模板文件时使用
const DefaultTemplate = `The following is a conversation between a human and an AI assistant.
The assistant is helpful, precise and answers in markdown.

Additional instruction: {hackprompt}

Current conversation:
{history}
Human: {input}
AI:`

// ErrMissingPlaceholder 模板缺少必需的占位符
// 属于配置错误，在启动时校验，运行期不应出现
var ErrMissingPlaceholder = errors.New("prompt template missing required placeholder")

// LoadTemplate 加载模板文件并校验占位符
// 参数:
//   - path: 模板文件路径，为空时返回内置默认模板
//
// 返回:
//   - string: 模板文本
//   - error: 读取或校验错误
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return DefaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt template: %w", err)
	}
	template := string(data)
	if err := Validate(template); err != nil {
		return "", err
	}
	return template, nil
}

// Validate 校验模板包含全部三个占位符
// 参数:
//   - template: 模板文本
//
// 返回:
//   - error: 缺少占位符时返回 ErrMissingPlaceholder
func Validate(template string) error {
	for _, placeholder := range []string{PlaceholderHackPrompt, PlaceholderHistory, PlaceholderInput} {
		if !strings.Contains(template, placeholder) {
			return fmt.Errorf("%w: %s", ErrMissingPlaceholder, placeholder)
		}
	}
	return nil
}

// Compose 将 Hack Prompt 替换进模板
// 纯函数，无副作用。hackPrompt 为空时使用 DefaultHackPrompt；
// {history} 和 {input} 保持原样，留给 Render 按请求填充
// 参数:
//   - template: 模板文本
//   - hackPrompt: 会话的指令覆盖文本
//
// 返回:
//   - string: 组装后的模板
//   - error: 模板缺少占位符时返回 ErrMissingPlaceholder
func Compose(template, hackPrompt string) (string, error) {
	if err := Validate(template); err != nil {
		return "", err
	}
	if hackPrompt == "" {
		hackPrompt = DefaultHackPrompt
	}
	return strings.ReplaceAll(template, PlaceholderHackPrompt, hackPrompt), nil
}

// Render 填充剩余的 history / input 槽位，得到最终发送给 LLM 的文本
// 参数:
//   - composed: Compose 的输出
//   - history: 格式化后的窗口历史
//   - input: 本轮用户输入
//
// 返回:
//   - string: 最终 Prompt 文本
func Render(composed, history, input string) string {
	rendered := strings.ReplaceAll(composed, PlaceholderHistory, history)
	return strings.ReplaceAll(rendered, PlaceholderInput, input)
}

// FormatHistory 将对话轮次渲染为模板中的历史文本：
//
//	Human: ...
//	AI: ...
func FormatHistory(pairs []model.MessagePair) string {
	if len(pairs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, pair := range pairs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("Human: ")
		b.WriteString(pair.Human)
		b.WriteString("\nAI: ")
		b.WriteString(pair.AI)
	}
	return b.String()
}
