// Package providers 实现所有厂商适配器共享的传输无关逻辑：
// 配置管理、认证头注入、有界重试与指数退避、HTTP 状态分类、
// 错误消息提取与流式连接建立。
//
// 每个厂商适配器位于本包的子目录（openai、anthropic、gemini、
// mistral、groq、openrouter、ollama），嵌入 Base 并只负责
// 厂商负载的构建与响应的归一化。
package providers
