package cmd

import (
	"context"
	"io/ioutil"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bobinette/coursedocs/errors"
	"github.com/bobinette/coursedocs/jwt"
	"github.com/bobinette/coursedocs/log"
	"github.com/bobinette/coursedocs/sharing"

	"github.com/bobinette/coursedocs/sharing/bolt"
	"github.com/bobinette/coursedocs/sharing/drive"
	"github.com/bobinette/coursedocs/sharing/mysql"
	"github.com/bobinette/coursedocs/sharing/redis"
)

type Configuration struct {
	KeyPath string `toml:"key"`

	// ModuleTypes are the module types whose documents are shared. Only
	// resource modules are shared when the key is absent, an empty list
	// means every type.
	ModuleTypes []string `toml:"module_types"`

	// WriterCapability grants writer to the users holding it in the course,
	// typically moodle/course:manageactivities. Empty means everyone reads.
	WriterCapability string `toml:"writer_capability"`

	// IgnoreRestrictions skips the per-user restriction rules of modules.
	IgnoreRestrictions bool `toml:"ignore_restrictions"`

	Cron struct {
		Spec string `toml:"spec"`
	} `toml:"cron"`
	Bolt struct {
		Store string `toml:"store"`
	} `toml:"bolt"`
	MySQL struct {
		Host     string `toml:"host"`
		Port     string `toml:"port"`
		User     string `toml:"user"`
		Password string `toml:"password"`
		Database string `toml:"database"`
		Prefix   string `toml:"prefix"`
	} `toml:"mysql"`
	Drive struct {
		Credentials string `toml:"credentials"`
		Subject     string `toml:"subject"`
	} `toml:"drive"`
	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		Key      string `toml:"key"`
	} `toml:"redis"`
}

// DefaultModuleTypes are the module types shared when the configuration does
// not list any.
var DefaultModuleTypes = []string{"resource"}

func (c Configuration) moduleTypes() []string {
	if c.ModuleTypes == nil {
		return DefaultModuleTypes
	}
	return c.ModuleTypes
}

// NewService opens the stores and clients described by conf. The returned
// function closes them.
func NewService(ctx context.Context, conf Configuration, logger log.Logger) (*sharing.Service, func(), error) {
	boltDriver := &bolt.Driver{}
	if err := boltDriver.Open(conf.Bolt.Store); err != nil {
		return nil, nil, err
	}

	prefix := conf.MySQL.Prefix
	if prefix == "" {
		prefix = mysql.DefaultPrefix
	}
	mysqlDriver, err := mysql.NewDriver(
		conf.MySQL.Host,
		conf.MySQL.Port,
		conf.MySQL.User,
		conf.MySQL.Password,
		conf.MySQL.Database,
		prefix,
	)
	if err != nil {
		boltDriver.Close()
		return nil, nil, errors.New("error connecting to MySQL", errors.WithCause(err))
	}

	closeAll := func() {
		boltDriver.Close()
		mysqlDriver.Close()
	}

	credentials, err := ioutil.ReadFile(conf.Drive.Credentials)
	if err != nil {
		closeAll()
		return nil, nil, errors.New("could not open drive credentials", errors.WithCause(err))
	}
	client, err := drive.NewClient(ctx, credentials, conf.Drive.Subject)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	var evaluator sharing.AccessEvaluator = mysql.NewAccessEvaluator(mysqlDriver)
	if conf.IgnoreRestrictions {
		evaluator = sharing.AllowAll{}
	}

	var roles sharing.RolePolicy = sharing.ReaderPolicy{}
	if conf.WriterCapability != "" {
		roles = sharing.CapabilityPolicy{
			Checker:          mysql.NewCapabilityChecker(mysqlDriver),
			WriterCapability: conf.WriterCapability,
		}
	}

	service := sharing.NewService(
		mysql.NewCourseRepository(mysqlDriver),
		mysql.NewUserRepository(mysqlDriver),
		bolt.NewLinkRepository(boltDriver),
		client,
		evaluator,
		roles,
		logger,
		conf.moduleTypes()...,
	)
	return service, closeAll, nil
}

// Start registers the sharing endpoints, then starts the nightly resync and
// the event consumer. Everything stops with ctx.
func Start(ctx context.Context, srv sharing.HTTPServer, conf Configuration, logger log.Logger) *sharing.Service {
	key, err := jwt.ReadKey(conf.KeyPath)
	if err != nil {
		logger.Fatal("could not read key:", err)
	}

	service, closeAll, err := NewService(ctx, conf, logger)
	if err != nil {
		logger.Fatal("could not create sharing service:", err)
	}

	service.RegisterHTTP(srv, key)

	c, err := service.StartCron(ctx, conf.Cron.Spec)
	if err != nil {
		logger.Fatal("could not start cron:", err)
	}

	var rdb *goredis.Client
	if conf.Redis.Addr != "" {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		consumer := redis.NewConsumer(rdb, conf.Redis.Key, service, logger)
		go consumer.Run(ctx)
	}

	go func() {
		<-ctx.Done()
		c.Stop()
		if rdb != nil {
			rdb.Close()
		}
		closeAll()
	}()

	return service
}
