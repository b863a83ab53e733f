// trackerctl 在命令行中生成和检查分享令牌，无需启动服务。
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Debugf("trackerctl failed: %v", err)
		os.Exit(1)
	}
}
