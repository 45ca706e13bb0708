package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env
// y opcionalmente archivo .env).
type Config struct {
	App      AppConfig
	DB       DBConfig
	Transfer TransferConfig
	Cache    CacheConfig
	Expiry   ExpiryConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env  string // development, staging, production
	Name string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido,
// si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para
// caracteres especiales en la contraseña.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// TransferConfig constantes del motor de traslados. El umbral de ROI (20%) y
// el de demanda (2 und/día) vienen del negocio y son ajustables por env; no
// están incrustados en el código.
type TransferConfig struct {
	BaseCost               decimal.Decimal // costo fijo por traslado
	PerUnitCost            decimal.Decimal // costo por unidad trasladada
	SameCityMultiplier     decimal.Decimal // heurística de distancia, no logística real
	SameProvinceMultiplier decimal.Decimal
	FarMultiplier          decimal.Decimal
	MinROIRatio            decimal.Decimal // ahorro mínimo como fracción del costo
	DemandThresholdPerDay  decimal.Decimal // und/día para considerar una sucursal destino
	ExpiryWindowDays       int             // ventana de lotes candidatos por vencimiento
	MaxRecommendations     int             // top-N del resultado combinado
	ProductSampleSize      int             // muestra acotada para análisis de desbalance
	ApprovalValueThreshold decimal.Decimal // sobre este valor exige aprobador distinto al solicitante
}

// CacheConfig TTL y enfriamiento del caché de cálculos del motor.
type CacheConfig struct {
	TTL      time.Duration
	Cooldown time.Duration
}

// ExpiryConfig parámetros del barrido diario de vencimientos.
type ExpiryConfig struct {
	SalesLookbackDays int // días de historial para demanda promedio
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde
// archivo .env). Las env vars tienen prioridad.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:  getString(v, "APP_ENV", "development"),
			Name: getString(v, "APP_NAME", "inventario-perecederos"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "inventario_perecederos"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		Transfer: TransferConfig{
			BaseCost:               getDecimal(v, "TRANSFER_BASE_COST", "25000"),
			PerUnitCost:            getDecimal(v, "TRANSFER_PER_UNIT_COST", "150"),
			SameCityMultiplier:     getDecimal(v, "TRANSFER_SAME_CITY_MULT", "1.0"),
			SameProvinceMultiplier: getDecimal(v, "TRANSFER_SAME_PROVINCE_MULT", "1.5"),
			FarMultiplier:          getDecimal(v, "TRANSFER_FAR_MULT", "2.0"),
			MinROIRatio:            getDecimal(v, "TRANSFER_MIN_ROI_RATIO", "0.2"),
			DemandThresholdPerDay:  getDecimal(v, "TRANSFER_DEMAND_THRESHOLD", "2"),
			ExpiryWindowDays:       getInt(v, "TRANSFER_EXPIRY_WINDOW_DAYS", 30),
			MaxRecommendations:     getInt(v, "TRANSFER_MAX_RECOMMENDATIONS", 50),
			ProductSampleSize:      getInt(v, "TRANSFER_PRODUCT_SAMPLE", 100),
			ApprovalValueThreshold: getDecimal(v, "TRANSFER_APPROVAL_VALUE_THRESHOLD", "5000000"),
		},
		Cache: CacheConfig{
			TTL:      getDuration(v, "CACHE_TTL", 5*time.Minute),
			Cooldown: getDuration(v, "CACHE_COOLDOWN", 30*time.Second),
		},
		Expiry: ExpiryConfig{
			SalesLookbackDays: getInt(v, "EXPIRY_SALES_LOOKBACK_DAYS", 30),
		},
	}

	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case string:
			n, _ := strconv.Atoi(v.GetString(key))
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getDecimal(v *viper.Viper, key, def string) decimal.Decimal {
	s := def
	if v.IsSet(key) {
		s = v.GetString(key)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		d, _ = decimal.NewFromString(def)
	}
	return d
}

func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if v.IsSet(key) {
		if d, err := time.ParseDuration(v.GetString(key)); err == nil {
			return d
		}
	}
	return def
}
