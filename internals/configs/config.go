package configs

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

var (
	// JWTSecret menandatangani access token auth (identity module).
	JWTSecret string

	// QRJWTSecret menandatangani QR token. Sengaja dipisah dari JWTSecret
	// supaya kebocoran satu key tidak menjalar ke channel lain.
	// Fallback ke JWTSecret kalau belum diset (development only).
	QRJWTSecret string

	// RedisURL kosong = nonce store langsung pakai fallback Postgres.
	RedisURL string

	// QRTokenTTL: umur QR token. NonceTTL harus >= QRTokenTTL supaya
	// nonce tidak pernah expire sebelum token yang membawanya.
	QRTokenTTL time.Duration
	NonceTTL   time.Duration

	// FlushInterval: jadwal flush buffer sesi realtime ke DB.
	FlushInterval time.Duration

	// GeofenceDefaultRadius (meter) dipakai bila subject punya lokasi
	// referensi tanpa radius eksplisit.
	GeofenceDefaultRadius float64
)

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("⚠️ Tidak menemukan .env file, menggunakan ENV dari sistem")
		} else {
			log.Println("✅ .env file berhasil dimuat!")
		}
	} else {
		log.Println("🚀 Running in Railway, menggunakan ENV dari sistem")
	}

	JWTSecret = GetEnv("JWT_SECRET")
	QRJWTSecret = GetEnv("QR_JWT_SECRET")
	RedisURL = GetEnv("REDIS_URL")

	QRTokenTTL = time.Duration(getEnvInt("QR_TOKEN_TTL_SECONDS", 10)) * time.Second
	NonceTTL = time.Duration(getEnvInt("NONCE_TTL_SECONDS", 30)) * time.Second
	FlushInterval = time.Duration(getEnvInt("FLUSH_INTERVAL_SECONDS", 30)) * time.Second
	GeofenceDefaultRadius = getEnvFloat("GEOFENCE_DEFAULT_RADIUS_M", 50)

	if JWTSecret == "" {
		log.Println("❌ JWT_SECRET belum diset!")
	} else {
		log.Println("✅ JWT_SECRET berhasil dimuat.")
	}

	if QRJWTSecret == "" {
		QRJWTSecret = JWTSecret
		log.Println("⚠️ QR_JWT_SECRET belum diset - fallback ke JWT_SECRET (set dedicated key di production!)")
	} else {
		log.Println("✅ QR_JWT_SECRET berhasil dimuat.")
	}

	if NonceTTL < QRTokenTTL {
		log.Printf("⚠️ NONCE_TTL (%s) < QR_TOKEN_TTL (%s) - dinaikkan ke token TTL", NonceTTL, QRTokenTTL)
		NonceTTL = QRTokenTTL
	}
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("⚠️ %s bukan angka valid (%q), pakai default %d", key, v, def)
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("⚠️ %s bukan angka valid (%q), pakai default %v", key, v, def)
	}
	return def
}

// =======================
// GORM LOGGER CUSTOM
// =======================
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
}

func NewGormLogger() gormLogger.Interface {
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      gormLogger.Warn,
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	l.LogLevel = level
	return l
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	log.Printf("[INFO] "+msg, data...)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	log.Printf("[WARN] "+msg, data...)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	log.Printf("[ERROR] "+msg, data...)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	file := utils.FileWithLineNum()

	if err != nil {
		log.Printf("[ERROR] %s | %v | %s | %d rows | %s", file, err, elapsed, rows, sql)
	} else if elapsed > l.SlowThreshold {
		log.Printf("[SLOW SQL] %s | %s | %d rows | %s", file, elapsed, rows, sql)
	}
}
