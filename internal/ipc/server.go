package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lyricsync/internal/engine"
)

const writeTimeout = 200 * time.Millisecond

var logger = log.With().Str("component", "ipc").Logger()

// Dispatcher 接收客户端意图
type Dispatcher interface {
	Dispatch(engine.Event) error
}

// Server 在 unix socket 上广播快照（每行一个 JSON），并接收行命令
type Server struct {
	socketPath      string
	listener        net.Listener
	dispatcher      Dispatcher
	clientConns     map[net.Conn]string
	clientConnsLock sync.Mutex
	last            []byte
	lockFile        *os.File
	lockFilePath    string
	wg              sync.WaitGroup
}

func NewServer(socketPath string, d Dispatcher) *Server {
	return &Server{
		socketPath:   socketPath,
		dispatcher:   d,
		clientConns:  make(map[net.Conn]string),
		lockFilePath: socketPath + ".lock",
	}
}

func (s *Server) checkAndCleanOldLock() error {
	// 检查锁文件是否存在
	if _, err := os.Stat(s.lockFilePath); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	content, err := os.ReadFile(s.lockFilePath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read lock file, removing it")
		return os.Remove(s.lockFilePath)
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		logger.Warn().Str("pid_str", pidStr).Msg("Invalid PID in lock file, removing it")
		return os.Remove(s.lockFilePath)
	}

	if !isProcessRunning(pid) {
		logger.Info().Int("old_pid", pid).Msg("Process in lock file is not running, removing lock file")
		return os.Remove(s.lockFilePath)
	}

	logger.Info().Int("existing_pid", pid).Msg("Another process is still running")
	return nil
}

// isProcessRunning kill(pid, 0) 只检查进程是否存在
func isProcessRunning(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func (s *Server) acquireLock() error {
	if err := s.checkAndCleanOldLock(); err != nil {
		logger.Warn().Err(err).Msg("Failed to clean old lock file")
	}

	// 不能用 O_TRUNC，否则会清掉正在运行的实例写入的 PID
	file, err := os.OpenFile(s.lockFilePath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	// 尝试获取独占锁
	err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("another lyricsync instance is already running")
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if err := file.Truncate(0); err != nil {
		s.unlock(file)
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		s.unlock(file)
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	s.lockFile = file
	logger.Info().Str("lock_file", s.lockFilePath).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return nil
}

func (s *Server) unlock(file *os.File) {
	syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	file.Close()
}

func (s *Server) releaseLock() {
	if s.lockFile == nil {
		return
	}
	s.unlock(s.lockFile)
	os.Remove(s.lockFilePath)
	logger.Info().Str("lock_file", s.lockFilePath).Msg("Released process lock")
	s.lockFile = nil
}

func (s *Server) Start() error {
	// 首先尝试获取进程锁
	if err := s.acquireLock(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.releaseLock()
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.releaseLock()
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener

	logger.Info().Str("socket_path", s.socketPath).Msg("IPC server listening")

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error().Err(err).Msg("Failed to accept IPC connection")
			continue
		}
		go s.handleConnection(conn)
	}
}

// handleConnection 先发送最新快照，然后逐行读取命令
func (s *Server) handleConnection(conn net.Conn) {
	id := uuid.NewString()

	s.clientConnsLock.Lock()
	s.clientConns[conn] = id
	last := s.last
	if last != nil {
		s.writeLocked(conn, last)
	}
	s.clientConnsLock.Unlock()

	logger.Info().Str("client", id).Msg("Client connected")

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.handleCommand(conn, id, line)
	}

	s.clientConnsLock.Lock()
	delete(s.clientConns, conn)
	s.clientConnsLock.Unlock()
	conn.Close()
	logger.Info().Str("client", id).Msg("Client disconnected")
}

type errorReply struct {
	Error   string `json:"error"`
	Command string `json:"command"`
}

func (s *Server) handleCommand(conn net.Conn, id, line string) {
	ev, err := ParseCommand(line)
	if err == nil {
		logger.Debug().Str("client", id).Str("command", line).Msg("Received command")
		err = s.dispatcher.Dispatch(ev)
	}
	if err == nil {
		return
	}

	logger.Warn().Str("client", id).Str("command", line).Err(err).Msg("Command rejected")
	reply, _ := json.Marshal(errorReply{Error: err.Error(), Command: line})
	s.clientConnsLock.Lock()
	if _, ok := s.clientConns[conn]; ok {
		s.writeLocked(conn, append(reply, '\n'))
	}
	s.clientConnsLock.Unlock()
}

// writeLocked 调用方持有 clientConnsLock，写失败时移除客户端
func (s *Server) writeLocked(conn net.Conn, data []byte) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write(data); err != nil {
		logger.Error().Str("client", s.clientConns[conn]).Err(err).Msg("Failed to write to client, removing")
		conn.Close()
		delete(s.clientConns, conn)
	}
}

// Publish 实现 engine.Sink
func (s *Server) Publish(snap engine.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode snapshot")
		return
	}
	s.Broadcast(append(data, '\n'))
}

// Broadcast 发送给所有客户端，并记住最后一条给新连接
func (s *Server) Broadcast(data []byte) {
	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()

	s.last = data
	for conn := range s.clientConns {
		s.writeLocked(conn, data)
	}
}

// ClientCount 当前连接数
func (s *Server) ClientCount() int {
	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()
	return len(s.clientConns)
}

func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
		s.wg.Wait()
	}
	s.clientConnsLock.Lock()
	for conn := range s.clientConns {
		conn.Close()
	}
	s.clientConnsLock.Unlock()
	s.releaseLock()
}
