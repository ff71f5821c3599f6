package rabbitmq_common

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultReconnectInterval = 10 * time.Second

// ConnectionManager держит одно соединение с брокером на процесс.
// Каналы открываются по запросу, соединение восстанавливается в фоне.
type ConnectionManager struct {
	url               string
	reconnectInterval time.Duration

	connection *amqp.Connection
	mutex      sync.RWMutex

	done      chan struct{}
	closeOnce sync.Once

	Logger Logger
}

var (
	managerInstance *ConnectionManager
	managerErr      error
	once            sync.Once
)

// GetManager создает или возвращает общий для процесса менеджер.
// Ошибка первого подключения запоминается: повторный вызов вернет ее же.
func GetManager(url string, logger Logger) (*ConnectionManager, error) {
	once.Do(func() {
		managerInstance, managerErr = NewManager(url, logger, defaultReconnectInterval)
	})
	return managerInstance, managerErr
}

// NewManager подключается к брокеру и запускает наблюдение за соединением
func NewManager(url string, logger Logger, reconnectInterval time.Duration) (*ConnectionManager, error) {
	if err := (Config{URL: url}).Validate(); err != nil {
		return nil, err
	}
	if reconnectInterval <= 0 {
		reconnectInterval = defaultReconnectInterval
	}
	m := &ConnectionManager{
		url:               url,
		reconnectInterval: reconnectInterval,
		done:              make(chan struct{}),
		Logger:            OrNoop(logger),
	}
	if _, err := m.getConnection(); err != nil {
		m.Logger.Error(err, "Initial connection failed")
		return nil, fmt.Errorf("initial connection failed: %w", err)
	}
	go m.watch()
	return m, nil
}

// getConnection возвращает живое соединение, при необходимости переподключаясь
func (m *ConnectionManager) getConnection() (*amqp.Connection, error) {
	m.mutex.RLock()
	if m.connection != nil && !m.connection.IsClosed() {
		conn := m.connection
		m.mutex.RUnlock()
		return conn, nil
	}
	m.mutex.RUnlock()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	// другой вызов мог успеть переподключиться
	if m.connection != nil && !m.connection.IsClosed() {
		return m.connection, nil
	}

	m.Logger.Debug("ConnectionManager: Connecting...")
	conn, err := amqp.Dial(m.url)
	if err != nil {
		return nil, fmt.Errorf("ConnectionManager: failed to dial RabbitMQ: %w", err)
	}
	m.connection = conn
	m.Logger.Info("ConnectionManager: Connected")
	return conn, nil
}

// GetChannel открывает новый канал на общем соединении
func (m *ConnectionManager) GetChannel() (*amqp.Connection, *amqp.Channel, error) {
	select {
	case <-m.done:
		return nil, nil, fmt.Errorf("ConnectionManager: manager is closed")
	default:
	}
	conn, err := m.getConnection()
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return conn, nil, fmt.Errorf("ConnectionManager: failed to open a channel: %w", err)
	}
	return conn, ch, nil
}

// watch раз в reconnectInterval проверяет соединение, пока менеджер не закрыт
func (m *ConnectionManager) watch() {
	ticker := time.NewTicker(m.reconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}

		m.mutex.RLock()
		healthy := m.connection != nil && !m.connection.IsClosed()
		m.mutex.RUnlock()
		if healthy {
			continue
		}

		m.Logger.Warn("ConnectionManager: Detected closed connection. Attempting to reconnect...")
		if _, err := m.getConnection(); err != nil {
			m.Logger.Error(err, "ConnectionManager: Reconnect failed", "retry_in", m.reconnectInterval.String())
		}
	}
}

// Close останавливает наблюдение и закрывает соединение
func (m *ConnectionManager) Close() error {
	m.closeOnce.Do(func() { close(m.done) })

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.connection == nil || m.connection.IsClosed() {
		m.Logger.Debug("ConnectionManager: Connection was already closed or not established.")
		return nil
	}
	if err := m.connection.Close(); err != nil {
		m.Logger.Error(err, "ConnectionManager: Failed to close connection properly")
		return err
	}
	m.Logger.Info("ConnectionManager: Connection closed")
	return nil
}
