// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect и graceful shutdown
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений, ack/nack/reject
//   - message.go    — конверт сообщения и типы
//
// Exchanges:
//   - courier.conductor — входящие команды conductor'а (createDispatch, deleteDispatch, ...)
//   - courier.events    — доменные события для планировщика (fanout, очередь на реплику)
//   - courier.notify    — исходящие notify-события для доставки контента
//   - courier.dlq       — dead letter
package mq
