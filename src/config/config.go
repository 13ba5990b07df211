package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"TitanicInsight/src/utils"

	"gopkg.in/yaml.v3"
)

// DefaultDatasetURL 默认的泰坦尼克号乘客数据集
const DefaultDatasetURL = "https://raw.githubusercontent.com/leontoddjohnson/datasets/main/data/titanic.csv"

// 数据源类型
const (
	SourceWeb   = "web"
	SourceFile  = "file"
	SourceEmail = "email"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Source struct {
		Kind      string   `json:"kind" yaml:"kind"`             // web / file / email
		URL       string   `json:"url" yaml:"url"`               // web 数据源地址
		Path      string   `json:"path" yaml:"path"`             // file 数据源路径(CSV/XLSX)
		SheetName string   `json:"sheet_name" yaml:"sheet_name"` // XLSX 工作表名, 为空时取第一个
		Timeout   Duration `json:"timeout" yaml:"timeout"`       // 下载超时时间
	} `json:"source" yaml:"source"`

	Email struct {
		Server        string   `json:"server" yaml:"server"`                 // 邮件服务器地址
		Username      string   `json:"username" yaml:"username"`             // 邮箱用户名
		Password      string   `json:"password" yaml:"password"`             // 邮箱密码
		Mailbox       string   `json:"mailbox" yaml:"mailbox"`               // 邮箱文件夹
		TargetSubject string   `json:"target_subject" yaml:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval" yaml:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email" yaml:"email"`

	SendEmail struct {
		Enabled  bool     `json:"enabled" yaml:"enabled"`
		Server   string   `json:"server" yaml:"server"`     // SMTP 服务器地址(host:port)
		Username string   `json:"username" yaml:"username"` // 邮箱用户名
		Password string   `json:"password" yaml:"password"` // 邮箱密码
		To       []string `json:"to" yaml:"to"`             // 收件人
		Subject  string   `json:"subject" yaml:"subject"`   // 报告邮件主题
	} `json:"send_email" yaml:"send_email"`

	TopN            int      `json:"top_n" yaml:"top_n"`       // 家庭图表展示数量
	DataDir         string   `json:"data_dir" yaml:"data_dir"` // 应用程序数据存储目录
	OutputDir       string   `json:"output_dir" yaml:"output_dir"`
	LogName         string   `json:"log_name" yaml:"log_name"`
	LogMaxSize      string   `json:"log_max_size" yaml:"log_max_size"`
	RefreshInterval Duration `json:"refresh_interval" yaml:"refresh_interval"`
	Listen          string   `json:"listen" yaml:"listen"`
}

// DataConfig 标准列名 -> 数据集列名
type DataConfig struct {
	Columns map[string]string `json:"columns" yaml:"columns"`
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

// Default 返回带默认值的配置
func Default() *Config {
	cfg := &Config{
		TopN:            10,
		DataDir:         "data",
		OutputDir:       "output",
		LogName:         "app.log",
		LogMaxSize:      "10 * 1024 * 1024",
		RefreshInterval: Duration(time.Hour),
		Listen:          ":8080",
	}
	cfg.Source.Kind = SourceWeb
	cfg.Source.URL = DefaultDatasetURL
	cfg.Source.Timeout = Duration(30 * time.Second)
	cfg.Email.Mailbox = "INBOX"
	cfg.Email.CheckInterval = Duration(5 * time.Minute)
	cfg.SendEmail.Subject = "Titanic passenger insight report"
	return cfg
}

func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 数据配置可选, 缺失时按原始列名处理
	var dataConfigData []byte
	if dataJsonFile != "" {
		dataConfigData, err = readFile(dataConfigFile)
		if err != nil {
			return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
		}
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, isYAML(configFile), cfgChan, errChan)
	go parseDataConfig(dataConfigData, isYAML(dataConfigFile), dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func decode(data []byte, asYAML bool, v any) error {
	if asYAML {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

func parseConfig(data []byte, asYAML bool, resultChan chan<- *Config, errChan chan<- error) {
	cfg := Default()
	if err := decode(data, asYAML, cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	resultChan <- cfg
}

func parseDataConfig(data []byte, asYAML bool, resultChan chan<- *DataConfig, errChan chan<- error) {
	dcfg := DataConfig{Columns: map[string]string{}}
	if len(data) > 0 {
		if err := decode(data, asYAML, &dcfg); err != nil {
			errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
			return
		}
	}
	if dcfg.Columns == nil {
		dcfg.Columns = map[string]string{}
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	// 使用固定格式字符串
	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// Validate 检查配置是否完整
func (c *Config) Validate() error {
	var errs []error

	switch c.Source.Kind {
	case SourceWeb:
		if c.Source.URL == "" {
			errs = append(errs, fmt.Errorf("source.url 不能为空"))
		}
	case SourceFile:
		if c.Source.Path == "" {
			errs = append(errs, fmt.Errorf("source.path 不能为空"))
		}
	case SourceEmail:
		if c.Email.Server == "" || c.Email.Username == "" {
			errs = append(errs, fmt.Errorf("email.server 和 email.username 不能为空"))
		}
	default:
		errs = append(errs, fmt.Errorf("未知的数据源类型: %q", c.Source.Kind))
	}

	if c.SendEmail.Enabled {
		if c.SendEmail.Server == "" || len(c.SendEmail.To) == 0 {
			errs = append(errs, fmt.Errorf("send_email.server 和 send_email.to 不能为空"))
		}
	}

	if c.LogMaxSize != "" {
		if _, err := utils.ParseSize(c.LogMaxSize); err != nil {
			errs = append(errs, fmt.Errorf("log_max_size 无效: %w", err))
		}
	}

	return combineErrors(errs)
}

// LogMaxBytes 日志轮转上限(字节), 未配置时为 0
func (c *Config) LogMaxBytes() int64 {
	if c.LogMaxSize == "" {
		return 0
	}
	n, err := utils.ParseSize(c.LogMaxSize)
	if err != nil {
		return 0
	}
	return n
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON/YAML序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalYAML 实现yaml.Unmarshaler接口
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("无效的时间间隔 %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ColumnMap 返回列映射的副本
func (dc *DataConfig) ColumnMap() map[string]string {
	if dc == nil {
		return nil
	}
	mu.RLock()
	defer mu.RUnlock()
	out := make(map[string]string, len(dc.Columns))
	for k, v := range dc.Columns {
		out[k] = v
	}
	return out
}
