// Package relay_sdk 提供端到端加密群聊中继的核心能力：
// 按房间隔离的连接注册、签名密钥交换、频道成员管理、消息路由与内容审查。
// 中继只转发密文信封，永远接触不到明文。
//
// @title Relay SDK API
// @version 1.0
// @description 端到端加密群聊中继的管理端 RESTful API（频道、消息台账、公告、违禁记录）
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package relay_sdk
