// Package transport — обмен сообщениями между manager'ом и workers.
//
// Протокол: типизированные конверты (Message) с JSON телом, один
// обработчик на kind. Две реализации Transport: Hub — прямые вызовы
// внутри процесса, AMQP — RabbitMQ с очередью на peer'а и RPC по
// correlation ID.
package transport
