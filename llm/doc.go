// Package llm 定义厂商无关的 LLM 请求/响应类型、统一错误分类、
// Provider 接口与注册中心。具体厂商适配实现见 llm/providers 下的子包，
// 按名称构造见 llm/factory。
package llm
