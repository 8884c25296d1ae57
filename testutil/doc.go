// Package testutil 聚合测试辅助设施。
//
// 子包 mocks 提供 llm.Provider 的可配置模拟实现，
// 供注册中心与上层调用方的测试使用，避免真实网络调用。
package testutil
